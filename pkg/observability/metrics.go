package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pinkchat/relay"

// Metrics holds the relay instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections metric.Int64UpDownCounter
	relayed     metric.Int64Counter
	fanout      metric.Int64Histogram
	rejected    metric.Int64Counter
	pushes      metric.Int64Counter
}

// NewMetrics registers the relay instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	connections, err := meter.Int64UpDownCounter("relay_connections",
		metric.WithDescription("Live websocket connections"))
	if err != nil {
		return nil, err
	}
	relayed, err := meter.Int64Counter("relay_events_relayed_total",
		metric.WithDescription("Inbound events accepted and broadcast, by type"))
	if err != nil {
		return nil, err
	}
	fanout, err := meter.Int64Histogram("relay_broadcast_recipients",
		metric.WithDescription("Connections reached per broadcast"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("relay_events_rejected_total",
		metric.WithDescription("Inbound events dropped, by error code"))
	if err != nil {
		return nil, err
	}
	pushes, err := meter.Int64Counter("relay_push_attempts_total",
		metric.WithDescription("Push notification attempts, by outcome"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		connections: connections,
		relayed:     relayed,
		fanout:      fanout,
		rejected:    rejected,
		pushes:      pushes,
	}, nil
}

func (m *Metrics) ConnOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, 1)
}

func (m *Metrics) ConnClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, -1)
}

func (m *Metrics) EventRelayed(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.relayed.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

func (m *Metrics) Broadcast(ctx context.Context, recipients int) {
	if m == nil {
		return
	}
	m.fanout.Record(ctx, int64(recipients))
}

func (m *Metrics) EventRejected(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

func (m *Metrics) PushAttempt(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !ok {
		outcome = "failed"
	}
	m.pushes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
