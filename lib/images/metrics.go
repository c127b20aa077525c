package images

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks image build outcomes
type Metrics struct {
	buildDuration metric.Float64Histogram
	buildTotal    metric.Int64Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	buildDuration, err := meter.Float64Histogram(
		"trainstack_build_duration_seconds",
		metric.WithDescription("Duration of image builds in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	buildTotal, err := meter.Int64Counter(
		"trainstack_builds_total",
		metric.WithDescription("Total number of image builds"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		buildDuration: buildDuration,
		buildTotal:    buildTotal,
	}, nil
}

// RecordBuild records metrics for a finished build
func (m *Metrics) RecordBuild(ctx context.Context, status, stack string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
		attribute.String("stack", stack),
	}

	m.buildDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.buildTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
