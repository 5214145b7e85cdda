package websocket

import (
	"context"
	"log/slog"
	"sync"

	"nftgate/internal/infrastructure"
)

// Hub tracks live sessions so they can be counted and closed on shutdown
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	closed   bool
	logger   *slog.Logger
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		logger:   infrastructure.WithComponent(logger, "websocket_hub"),
	}
}

// Register adds a session. It reports false once the hub is shut down.
func (h *Hub) Register(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

// Unregister removes a session
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// SessionCount returns the number of live sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown refuses new sessions and closes the live ones
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	h.logger.InfoContext(ctx, "websocket hub shut down", slog.Int("closed_sessions", len(sessions)))
}
