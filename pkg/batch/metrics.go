package batch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type stepMetrics struct {
	read       metric.Int64Counter
	written    metric.Int64Counter
	committed  metric.Int64Counter
	rolledBack metric.Int64Counter
	attrs      metric.MeasurementOption
}

func newStepMetrics(mp metric.MeterProvider, step string) *stepMetrics {
	meter := mp.Meter(instrumentationName)
	return &stepMetrics{
		read:       counter(meter, "batch.items.read", "Items read by chunk steps"),
		written:    counter(meter, "batch.items.written", "Items written by committed chunks"),
		committed:  counter(meter, "batch.chunks.committed", "Chunks committed"),
		rolledBack: counter(meter, "batch.chunks.rolled_back", "Chunks rolled back"),
		attrs:      metric.WithAttributes(attribute.String("step", step)),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (m *stepMetrics) addRead(ctx context.Context, n int64) { m.read.Add(ctx, n, m.attrs) }

func (m *stepMetrics) commit(ctx context.Context, written int64) {
	m.committed.Add(ctx, 1, m.attrs)
	m.written.Add(ctx, written, m.attrs)
}

func (m *stepMetrics) rollback(ctx context.Context) { m.rolledBack.Add(ctx, 1, m.attrs) }
