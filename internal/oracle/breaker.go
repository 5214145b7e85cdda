package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"nftgate/internal/infrastructure"
)

// Oracle is the lookup capability shared by every variant
type Oracle interface {
	HasValidLicense(ctx context.Context, address string) (bool, error)
}

// BreakerOptions configures a Breaker
type BreakerOptions struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	Logger              *slog.Logger
}

// Breaker stops calling a failing oracle for a while so callers get a fast
// error instead of piling up on a dead upstream.
type Breaker struct {
	next    Oracle
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewBreaker wraps next in a circuit breaker
func NewBreaker(next Oracle, opts BreakerOptions) *Breaker {
	b := &Breaker{
		next:   next,
		logger: infrastructure.WithComponent(opts.Logger, "oracle.breaker"),
	}

	threshold := opts.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	name := opts.Name
	if name == "" {
		name = "ownership-oracle"
	}

	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("oracle circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		// A caller giving up is not an upstream failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return b
}

// HasValidLicense delegates to the wrapped oracle unless the breaker is open
func (b *Breaker) HasValidLicense(ctx context.Context, address string) (bool, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.HasValidLicense(ctx, address)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}
		return false, err
	}

	return result.(bool), nil
}

// State returns the breaker state name: closed, half-open or open
func (b *Breaker) State() string {
	return b.breaker.State().String()
}
