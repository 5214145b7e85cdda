package license

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"nftgate/internal/infrastructure"
)

// RequestStore issues licensing requests and hands each one out at most once.
// All access to the outstanding set goes through mu.
type RequestStore struct {
	mu       sync.Mutex
	requests map[string]pendingRequest

	ttl      time.Duration
	now      func() time.Time
	newToken func() string
	validate *validator.Validate
	logger   *slog.Logger

	issued   uint64
	consumed uint64
	expired  uint64

	stopChan chan struct{}
	stopOnce sync.Once
	started  bool
}

// StoreOption configures a RequestStore
type StoreOption func(*RequestStore)

// WithTTL sets how long an unanswered request stays redeemable. Zero disables expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *RequestStore) { s.ttl = ttl }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(s *RequestStore) { s.now = now }
}

// WithTokenSource overrides the random token generator used for ids and nonces
func WithTokenSource(newToken func() string) StoreOption {
	return func(s *RequestStore) { s.newToken = newToken }
}

// WithStoreLogger sets the store logger
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *RequestStore) { s.logger = logger }
}

// NewRequestStore creates an empty store. Ids and nonces are random UUIDv4
// strings (122 random bits) unless overridden.
func NewRequestStore(opts ...StoreOption) *RequestStore {
	s := &RequestStore{
		requests: make(map[string]pendingRequest),
		now:      time.Now,
		newToken: uuid.NewString,
		validate: validator.New(),
		stopChan: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = infrastructure.WithComponent(s.logger, "license.store")

	return s
}

// CreateRequest issues a new request whose message is preamble, a newline and
// a fresh nonce. The id never collides with an id currently held.
func (s *RequestStore) CreateRequest(preamble string) LicensingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newToken()
	for {
		if _, exists := s.requests[id]; !exists {
			break
		}
		id = s.newToken()
	}

	request := LicensingRequest{
		ID:      id,
		Message: preamble + "\n" + s.newToken(),
	}

	now := s.now()
	pending := pendingRequest{request: request, issuedAt: now}
	if s.ttl > 0 {
		pending.expiresAt = now.Add(s.ttl)
	}

	s.requests[id] = pending
	s.issued++

	return request
}

// ValidateResponseShape reports whether response carries every field needed
// for verification. It does no cryptographic work.
func (s *RequestStore) ValidateResponseShape(response *LicensingResponse) bool {
	if response == nil {
		return false
	}
	return s.validate.Struct(response) == nil
}

// ExtractByID removes and returns the request with the given id. Lookup and
// removal happen under one lock, so concurrent callers racing on the same id
// see exactly one success; everyone else gets ErrRequestNotFound.
func (s *RequestStore) ExtractByID(id string) (LicensingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.requests[id]
	if !ok {
		return LicensingRequest{}, ErrRequestNotFound
	}

	delete(s.requests, id)

	now := s.now()
	age := now.Sub(pending.issuedAt)

	if pending.expired(now) {
		s.expired++
		s.logger.Debug("request expired before use",
			slog.String("request_id", id),
			slog.Duration("age", age))
		return LicensingRequest{}, ErrRequestExpired
	}

	s.consumed++
	s.logger.Debug("request consumed",
		slog.String("request_id", id),
		slog.Duration("age", age))
	return pending.request, nil
}

// Len returns the number of outstanding requests, expired ones included until swept
func (s *RequestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Stats returns store counters
func (s *RequestStore) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StoreStats{
		Outstanding: len(s.requests),
		Issued:      s.issued,
		Consumed:    s.consumed,
		Expired:     s.expired,
	}
}

// Sweep drops every expired request and returns how many were removed
func (s *RequestStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		return 0
	}

	now := s.now()
	removed := 0
	for id, pending := range s.requests {
		if pending.expired(now) {
			delete(s.requests, id)
			removed++
		}
	}
	s.expired += uint64(removed)

	return removed
}

// StartSweeper runs Sweep every interval until Stop is called. It is a no-op
// when the store has no TTL or a sweeper is already running.
func (s *RequestStore) StartSweeper(interval time.Duration) {
	s.mu.Lock()
	if s.ttl <= 0 || interval <= 0 || s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.sweep(interval)
}

// Stop stops the sweeper goroutine. Safe to call more than once.
func (s *RequestStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *RequestStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug("expired licensing requests swept",
					slog.Int("removed", removed),
					slog.Int("outstanding", s.Len()),
				)
			}
		case <-s.stopChan:
			return
		}
	}
}
