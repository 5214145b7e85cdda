package license

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestNotFound is returned when a request id was never issued or
	// has already been consumed.
	ErrRequestNotFound = errors.New("licensing request not found")

	// ErrRequestExpired is returned for a request that outlived its TTL.
	// It matches ErrRequestNotFound.
	ErrRequestExpired = fmt.Errorf("%w: expired", ErrRequestNotFound)

	// ErrInvalidSignature covers undecodable or unrecoverable signatures
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrOracleFailure marks errors raised while asking the ownership oracle.
	// A licensing decision could not be made; this is not a "not licensed".
	ErrOracleFailure = errors.New("ownership oracle failure")

	// ErrNilOracle is returned by NewLicenser when no oracle is supplied
	ErrNilOracle = errors.New("ownership oracle is required")
)

// OracleError wraps a failure of the ownership oracle for a given address.
// It matches both ErrOracleFailure and the underlying cause.
type OracleError struct {
	Address string
	Err     error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("ownership lookup for %s failed: %v", e.Address, e.Err)
}

func (e *OracleError) Unwrap() []error {
	return []error{ErrOracleFailure, e.Err}
}
