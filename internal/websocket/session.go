package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nftgate/internal/config"
	"nftgate/internal/infrastructure"
	"nftgate/internal/license"
)

const sendQueueSize = 16

// Licensing is the challenge-response capability served over the socket
type Licensing interface {
	IssueChallenge(ctx context.Context) license.LicensingRequest
	ValidateResponse(ctx context.Context, response *license.LicensingResponse) (bool, error)
}

// Session is one socket connection running the licensing protocol. A
// connection may request and redeem any number of challenges.
type Session struct {
	id          string
	conn        Connection
	licensing   Licensing
	cfg         config.WebSocketConfig
	send        chan []byte
	metrics     *Metrics
	logger      *slog.Logger
	connectedAt time.Time
}

// NewSession wraps conn. Zero values in cfg fall back to the defaults.
func NewSession(conn Connection, licensing Licensing, cfg config.WebSocketConfig, metrics *Metrics, logger *slog.Logger) *Session {
	def := config.Default().WebSocket
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	return &Session{
		id:          id,
		conn:        conn,
		licensing:   licensing,
		cfg:         cfg,
		send:        make(chan []byte, sendQueueSize),
		metrics:     metrics,
		logger:      logger.With(slog.String("session_id", id), slog.String("remote_addr", conn.RemoteAddr())),
		connectedAt: time.Now(),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Close closes the underlying connection, which ends Run
func (s *Session) Close() error {
	return s.conn.Close()
}

// Run serves the connection until the peer goes away or ctx is cancelled
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.metrics.connected(ctx)
	s.logger.InfoContext(ctx, "websocket session opened")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	s.readPump(ctx)
	close(s.send)
	<-done

	s.metrics.disconnected(ctx, time.Since(s.connectedAt))
	s.logger.InfoContext(ctx, "websocket session closed",
		slog.Duration("connection_duration", time.Since(s.connectedAt)))
}

func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		s.handle(ctx, data)
	}
}

func (s *Session) handle(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.metrics.message(ctx, "in", "invalid")
		s.sendError(ctx, CodeInvalidMessage, "message is not valid JSON")
		return
	}
	s.metrics.message(ctx, "in", env.Type)

	switch env.Type {
	case TypeHeartbeat:
	case TypeRequestVerification:
		s.enqueue(ctx, Message{Type: TypeLicensingRequest, Data: s.licensing.IssueChallenge(ctx)})
	case TypeLicensingResponse:
		s.validate(ctx, env.Data)
	default:
		s.sendError(ctx, CodeUnknownType, "unknown message type "+env.Type)
	}
}

func (s *Session) validate(ctx context.Context, data json.RawMessage) {
	var response license.LicensingResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &response); err != nil {
			s.sendError(ctx, CodeInvalidMessage, "licensing response could not be decoded")
			return
		}
	}

	valid, err := s.licensing.ValidateResponse(ctx, &response)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		s.logger.ErrorContext(ctx, "licensing response failed",
			slog.String("request_id", response.RequestID),
			slog.String("error", err.Error()))
		s.sendError(ctx, CodeOracleUnavailable, "ownership could not be checked, try again later")
		return
	}

	s.enqueue(ctx, Message{Type: TypeLicensingCompleted, Data: valid})
}

func (s *Session) sendError(ctx context.Context, code, message string) {
	s.enqueue(ctx, Message{Type: TypeError, Data: ErrorData{Code: code, Message: message}})
}

// enqueue never blocks the read loop; a full queue drops the message
func (s *Session) enqueue(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode websocket message", slog.String("error", err.Error()))
		return
	}

	select {
	case s.send <- payload:
		s.metrics.message(ctx, "out", msg.Type)
	default:
		s.metrics.dropped(ctx)
		s.logger.WarnContext(ctx, "websocket send queue full, message dropped",
			slog.String("type", msg.Type))
	}
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.DebugContext(ctx, "websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.DebugContext(ctx, "websocket ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
