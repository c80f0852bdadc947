package realtime

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/codephoenix86/fastchat/internal/realtime"

// Metrics holds the real-time instruments. Until a meter provider is
// installed they record into the global no-op provider.
type Metrics struct {
	connections metric.Int64UpDownCounter
	transitions metric.Int64Counter
	replayed    metric.Int64Counter
	events      metric.Int64Counter
	rejected    metric.Int64Counter
}

func NewMetrics(logger *slog.Logger) *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.connections, err = meter.Int64UpDownCounter("fastchat_connections_active",
		metric.WithDescription("Authenticated WebSocket connections currently open")); err != nil {
		logger.Warn("Failed to create metric", slog.String("name", "fastchat_connections_active"), slog.Any("error", err))
		m.connections = noop.Int64UpDownCounter{}
	}
	if m.transitions, err = meter.Int64Counter("fastchat_presence_transitions_total",
		metric.WithDescription("Online and offline presence transitions")); err != nil {
		logger.Warn("Failed to create metric", slog.String("name", "fastchat_presence_transitions_total"), slog.Any("error", err))
		m.transitions = noop.Int64Counter{}
	}
	if m.replayed, err = meter.Int64Counter("fastchat_pending_replayed_total",
		metric.WithDescription("Pending messages pushed to reconnecting users")); err != nil {
		logger.Warn("Failed to create metric", slog.String("name", "fastchat_pending_replayed_total"), slog.Any("error", err))
		m.replayed = noop.Int64Counter{}
	}
	if m.events, err = meter.Int64Counter("fastchat_events_received_total",
		metric.WithDescription("Inbound client events by name")); err != nil {
		logger.Warn("Failed to create metric", slog.String("name", "fastchat_events_received_total"), slog.Any("error", err))
		m.events = noop.Int64Counter{}
	}
	if m.rejected, err = meter.Int64Counter("fastchat_handshakes_rejected_total",
		metric.WithDescription("WebSocket handshakes rejected by reason")); err != nil {
		logger.Warn("Failed to create metric", slog.String("name", "fastchat_handshakes_rejected_total"), slog.Any("error", err))
		m.rejected = noop.Int64Counter{}
	}

	return m
}

func (m *Metrics) connectionOpened(ctx context.Context) {
	m.connections.Add(ctx, 1)
}

func (m *Metrics) connectionClosed(ctx context.Context) {
	m.connections.Add(ctx, -1)
}

func (m *Metrics) transition(ctx context.Context, state string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

func (m *Metrics) replay(ctx context.Context, n int) {
	if n > 0 {
		m.replayed.Add(ctx, int64(n))
	}
}

func (m *Metrics) event(ctx context.Context, event Event) {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(event))))
}

func (m *Metrics) rejection(ctx context.Context, code string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
