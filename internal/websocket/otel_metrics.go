package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// HubMetrics instruments connections and broadcasts.
type HubMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	droppedClients     metric.Int64Counter
	broadcasts         metric.Int64Counter
}

// NewHubMetrics creates the instruments on meter.
func NewHubMetrics(meter metric.Meter) (*HubMetrics, error) {
	var (
		m   HubMetrics
		err error
	)

	if m.connectionsTotal, err = meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionsActive, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.messagesSent, err = meter.Int64Counter("websocket_messages_total",
		metric.WithDescription("Messages queued to WebSocket clients")); err != nil {
		return nil, err
	}
	if m.droppedClients, err = meter.Int64Counter("websocket_dropped_clients_total",
		metric.WithDescription("Clients disconnected because their send buffer was full")); err != nil {
		return nil, err
	}
	if m.broadcasts, err = meter.Int64Counter("websocket_broadcasts_total",
		metric.WithDescription("Broadcast operations by event type")); err != nil {
		return nil, err
	}

	return &m, nil
}

// NoopHubMetrics returns instruments that record nothing.
func NoopHubMetrics() *HubMetrics {
	m, _ := NewHubMetrics(noop.NewMeterProvider().Meter("websocket"))
	return m
}

func (m *HubMetrics) recordConnect(ctx context.Context) {
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *HubMetrics) recordDisconnect(ctx context.Context, d time.Duration, reason string) {
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *HubMetrics) recordBroadcast(ctx context.Context, eventType string, delivered, dropped int) {
	attrs := metric.WithAttributes(attribute.String("event", eventType))
	m.broadcasts.Add(ctx, 1, attrs)
	m.messagesSent.Add(ctx, int64(delivered), attrs)
	if dropped > 0 {
		m.droppedClients.Add(ctx, int64(dropped))
	}
}
