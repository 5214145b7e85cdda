package oracle

import "errors"

var (
	// ErrOracleThrottled is returned when the marketplace API refuses the
	// request because of rate limiting. Supplying an API key reduces throttling.
	ErrOracleThrottled = errors.New("ownership API throttled the request")

	// ErrOracleUnavailable is returned while the circuit breaker is open
	ErrOracleUnavailable = errors.New("ownership oracle unavailable")

	// ErrInvalidAddress is returned for an address that is not a 20-byte hex value
	ErrInvalidAddress = errors.New("invalid wallet address")
)
