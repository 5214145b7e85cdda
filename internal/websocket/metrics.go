package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for socket metrics
const MeterName = "nftgate/websocket"

// Metrics holds the socket transport instruments. A nil *Metrics records nothing.
type Metrics struct {
	ConnectionsTotal   metric.Int64Counter
	ConnectionsActive  metric.Int64UpDownCounter
	ConnectionDuration metric.Float64Histogram
	MessagesTotal      metric.Int64Counter
	DroppedMessages    metric.Int64Counter
}

// NewMetrics creates the socket instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	connectionsTotal, err := meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionsActive, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionDuration, err := meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	messagesTotal, err := meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("WebSocket messages by direction and type"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"websocket_dropped_messages_total",
		metric.WithDescription("Outbound messages dropped because the send queue was full"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ConnectionsTotal:   connectionsTotal,
		ConnectionsActive:  connectionsActive,
		ConnectionDuration: connectionDuration,
		MessagesTotal:      messagesTotal,
		DroppedMessages:    dropped,
	}, nil
}

func (m *Metrics) connected(ctx context.Context) {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Add(ctx, 1)
	m.ConnectionsActive.Add(ctx, 1)
}

func (m *Metrics) disconnected(ctx context.Context, lifetime time.Duration) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Add(ctx, -1)
	m.ConnectionDuration.Record(ctx, lifetime.Seconds())
}

func (m *Metrics) message(ctx context.Context, direction, msgType string) {
	if m == nil {
		return
	}
	m.MessagesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("type", msgType),
	))
}

func (m *Metrics) dropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.DroppedMessages.Add(ctx, 1)
}
