package oracle

import (
	"context"
	"sync"
)

// Static answers every lookup with the same result. It stands in for a real
// oracle in development and tests.
type Static struct {
	answer bool
	err    error

	mu    sync.Mutex
	calls []string
}

// NewStatic returns an oracle that always answers answer
func NewStatic(answer bool) *Static {
	return &Static{answer: answer}
}

// NewFailing returns an oracle that always fails with err
func NewFailing(err error) *Static {
	return &Static{err: err}
}

// HasValidLicense records address and returns the configured answer
func (s *Static) HasValidLicense(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	s.calls = append(s.calls, address)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.err != nil {
		return false, s.err
	}
	return s.answer, nil
}

// Calls returns the addresses looked up so far, in order
func (s *Static) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
