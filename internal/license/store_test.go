package license

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"nftgate/internal/shared/testutil"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// Request Creation
// =============================================================================

func TestRequestStore_CreateRequest(t *testing.T) {
	t.Run("message is preamble newline nonce", func(t *testing.T) {
		store := NewRequestStore()

		req := store.CreateRequest("Sign this")

		require.NotEmpty(t, req.ID)
		parts := strings.SplitN(req.Message, "\n", 2)
		require.Len(t, parts, 2)
		assert.Equal(t, "Sign this", parts[0])
		assert.NotEmpty(t, parts[1])
		assert.Equal(t, 1, store.Len())
	})

	t.Run("empty preamble still carries a nonce", func(t *testing.T) {
		store := NewRequestStore()

		req := store.CreateRequest("")

		assert.True(t, strings.HasPrefix(req.Message, "\n"))
		assert.Greater(t, len(req.Message), 1)
	})

	t.Run("ids and messages are unique", func(t *testing.T) {
		store := NewRequestStore()
		ids := make(map[string]struct{})
		messages := make(map[string]struct{})

		for i := 0; i < 1000; i++ {
			req := store.CreateRequest("P")
			ids[req.ID] = struct{}{}
			messages[req.Message] = struct{}{}
		}

		assert.Len(t, ids, 1000)
		assert.Len(t, messages, 1000)
		assert.Equal(t, 1000, store.Len())
	})

	t.Run("id collision is retried", func(t *testing.T) {
		tokens := []string{"dup", "nonce-1", "dup", "fresh", "nonce-2"}
		var next int
		store := NewRequestStore(WithTokenSource(func() string {
			tok := tokens[next]
			next++
			return tok
		}))

		first := store.CreateRequest("P")
		second := store.CreateRequest("P")

		assert.Equal(t, "dup", first.ID)
		assert.Equal(t, "P\nnonce-1", first.Message)
		assert.Equal(t, "fresh", second.ID)
		assert.Equal(t, "P\nnonce-2", second.Message)
		assert.Equal(t, 2, store.Len())
	})

	t.Run("concurrent creation", func(t *testing.T) {
		store := NewRequestStore()
		var g errgroup.Group
		var mu sync.Mutex
		ids := make(map[string]struct{})

		for i := 0; i < 50; i++ {
			g.Go(func() error {
				for j := 0; j < 20; j++ {
					req := store.CreateRequest("P")
					mu.Lock()
					ids[req.ID] = struct{}{}
					mu.Unlock()
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Len(t, ids, 1000)
		assert.Equal(t, 1000, store.Len())
	})
}

// =============================================================================
// Response Shape
// =============================================================================

func TestRequestStore_ValidateResponseShape(t *testing.T) {
	store := NewRequestStore()

	tests := []struct {
		name     string
		response *LicensingResponse
		want     bool
	}{
		{"nil response", nil, false},
		{"all fields", &LicensingResponse{RequestID: "a", PublicAddress: "0x1", AnswerMessage: "0x2"}, true},
		{"missing address", &LicensingResponse{RequestID: "a", AnswerMessage: "0x2"}, false},
		{"missing answer", &LicensingResponse{RequestID: "a", PublicAddress: "0x1"}, false},
		{"missing request id", &LicensingResponse{PublicAddress: "0x1", AnswerMessage: "0x2"}, false},
		{"empty", &LicensingResponse{}, false},
		{"garbage values pass shape", &LicensingResponse{RequestID: "x", PublicAddress: "not-an-address", AnswerMessage: "zz"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.ValidateResponseShape(tt.response))
		})
	}
}

// =============================================================================
// Extraction
// =============================================================================

func TestRequestStore_ExtractByID(t *testing.T) {
	t.Run("extract returns the issued request once", func(t *testing.T) {
		store := NewRequestStore()
		req := store.CreateRequest("P")

		got, err := store.ExtractByID(req.ID)
		require.NoError(t, err)
		assert.Equal(t, req, got)
		assert.Equal(t, 0, store.Len())

		_, err = store.ExtractByID(req.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := NewRequestStore()
		store.CreateRequest("P")

		_, err := store.ExtractByID("never-issued")
		assert.ErrorIs(t, err, ErrRequestNotFound)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("other requests are untouched", func(t *testing.T) {
		store := NewRequestStore()
		a := store.CreateRequest("P")
		b := store.CreateRequest("P")

		_, err := store.ExtractByID(a.ID)
		require.NoError(t, err)

		got, err := store.ExtractByID(b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("concurrent extract has exactly one winner", func(t *testing.T) {
		for round := 0; round < 20; round++ {
			store := NewRequestStore()
			req := store.CreateRequest("P")

			var wins, losses atomic.Int32
			var g errgroup.Group
			for i := 0; i < 32; i++ {
				g.Go(func() error {
					if _, err := store.ExtractByID(req.ID); err == nil {
						wins.Add(1)
					} else {
						losses.Add(1)
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			assert.Equal(t, int32(1), wins.Load(), "round %d", round)
			assert.Equal(t, int32(31), losses.Load(), "round %d", round)
		}
	})
}

// =============================================================================
// Expiry
// =============================================================================

func TestRequestStore_Expiry(t *testing.T) {
	t.Run("request within ttl is redeemable", func(t *testing.T) {
		clock := newFakeClock()
		store := NewRequestStore(WithTTL(time.Minute), WithClock(clock.Now))
		req := store.CreateRequest("P")

		clock.Advance(59 * time.Second)

		_, err := store.ExtractByID(req.ID)
		assert.NoError(t, err)
	})

	t.Run("expired request is not found and removed", func(t *testing.T) {
		clock := newFakeClock()
		store := NewRequestStore(WithTTL(time.Minute), WithClock(clock.Now))
		req := store.CreateRequest("P")

		clock.Advance(time.Minute)

		_, err := store.ExtractByID(req.ID)
		assert.ErrorIs(t, err, ErrRequestExpired)
		assert.ErrorIs(t, err, ErrRequestNotFound)
		assert.Equal(t, 0, store.Len())

		_, err = store.ExtractByID(req.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
		assert.NotErrorIs(t, err, ErrRequestExpired)
	})

	t.Run("answer latency is logged", func(t *testing.T) {
		clock := newFakeClock()
		logger, logs := testutil.NewCaptureLogger()
		store := NewRequestStore(WithTTL(time.Minute), WithClock(clock.Now), WithStoreLogger(logger))
		answered := store.CreateRequest("P")
		late := store.CreateRequest("P")

		clock.Advance(20 * time.Second)
		_, err := store.ExtractByID(answered.ID)
		require.NoError(t, err)
		logs.RequireLogged(t, "request consumed", map[string]any{
			"request_id": answered.ID,
			"age":        20 * time.Second,
		})

		clock.Advance(70 * time.Second)
		_, err = store.ExtractByID(late.ID)
		require.ErrorIs(t, err, ErrRequestExpired)
		logs.RequireLogged(t, "request expired before use", map[string]any{
			"request_id": late.ID,
			"age":        90 * time.Second,
		})
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clock := newFakeClock()
		store := NewRequestStore(WithTTL(0), WithClock(clock.Now))
		req := store.CreateRequest("P")

		clock.Advance(365 * 24 * time.Hour)

		assert.Equal(t, 0, store.Sweep())
		_, err := store.ExtractByID(req.ID)
		assert.NoError(t, err)
	})

	t.Run("sweep drops only expired requests", func(t *testing.T) {
		clock := newFakeClock()
		store := NewRequestStore(WithTTL(time.Minute), WithClock(clock.Now))
		old1 := store.CreateRequest("P")
		old2 := store.CreateRequest("P")
		clock.Advance(30 * time.Second)
		fresh := store.CreateRequest("P")
		clock.Advance(45 * time.Second)

		removed := store.Sweep()

		assert.Equal(t, 2, removed)
		assert.Equal(t, 1, store.Len())
		_, err := store.ExtractByID(old1.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
		_, err = store.ExtractByID(old2.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
		_, err = store.ExtractByID(fresh.ID)
		assert.NoError(t, err)
	})
}

func TestRequestStore_Sweeper(t *testing.T) {
	clock := newFakeClock()
	store := NewRequestStore(WithTTL(time.Millisecond), WithClock(clock.Now))
	defer store.Stop()

	for i := 0; i < 5; i++ {
		store.CreateRequest(fmt.Sprintf("P%d", i))
	}
	clock.Advance(time.Second)

	store.StartSweeper(5 * time.Millisecond)
	store.StartSweeper(5 * time.Millisecond)

	require.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, uint64(5), store.Stats().Expired)

	store.Stop()
	store.Stop()
}

func TestRequestStore_SweeperDisabledWithoutTTL(t *testing.T) {
	store := NewRequestStore(WithTTL(0))
	store.StartSweeper(time.Millisecond)
	store.CreateRequest("P")

	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, store.Len())
	store.Stop()
}

func TestRequestStore_Stats(t *testing.T) {
	clock := newFakeClock()
	store := NewRequestStore(WithTTL(time.Minute), WithClock(clock.Now))

	a := store.CreateRequest("P")
	b := store.CreateRequest("P")
	store.CreateRequest("P")

	_, err := store.ExtractByID(a.ID)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = store.ExtractByID(b.ID)
	require.ErrorIs(t, err, ErrRequestExpired)

	stats := store.Stats()
	assert.Equal(t, StoreStats{Outstanding: 1, Issued: 3, Consumed: 1, Expired: 1}, stats)
}
