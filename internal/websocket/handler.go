package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"nftgate/internal/config"
	"nftgate/internal/infrastructure"
	"nftgate/internal/middleware"
)

// Handler upgrades HTTP requests and runs a Session on each connection
type Handler struct {
	upgrader  websocket.Upgrader
	licensing Licensing
	hub       *Hub
	cfg       config.WebSocketConfig
	metrics   *Metrics
	logger    *slog.Logger
}

// NewHandler creates the socket endpoint. Browser upgrades are only accepted
// from allowedOrigins; requests without an Origin header are always accepted.
func NewHandler(licensing Licensing, hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, metrics *Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
		licensing: licensing,
		hub:       hub,
		cfg:       cfg,
		metrics:   metrics,
		logger:    infrastructure.WithComponent(logger, "websocket"),
	}
}

// ServeHTTP handles GET /ws and blocks for the lifetime of the connection
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The session outlives any request deadline but keeps its trace ID.
	ctx := infrastructure.EnsureTraceID(context.WithoutCancel(r.Context()))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("error", err.Error()))
		return
	}

	session := NewSession(NewConnection(conn), h.licensing, h.cfg, h.metrics, h.logger)
	if !h.hub.Register(session) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	defer h.hub.Unregister(session)

	session.Run(ctx)
}
