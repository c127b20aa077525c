package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks service launches and exits
type Metrics struct {
	launchTotal   metric.Int64Counter
	gpuRejections metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	launchTotal, err := meter.Int64Counter(
		"trainstack_service_launches_total",
		metric.WithDescription("Total number of service launch attempts"),
	)
	if err != nil {
		return nil, err
	}

	gpuRejections, err := meter.Int64Counter(
		"trainstack_gpu_reservation_failures_total",
		metric.WithDescription("Launches aborted because the GPU reservation was unsatisfiable"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"trainstack_service_run_duration_seconds",
		metric.WithDescription("Wall clock duration of finished service runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		launchTotal:   launchTotal,
		gpuRejections: gpuRejections,
		runDuration:   runDuration,
	}, nil
}

// RecordLaunch records one launch attempt
func (m *Metrics) RecordLaunch(ctx context.Context, outcome, stack string) {
	m.launchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stack", stack),
	))
}

// RecordGPURejection records a launch aborted by the GPU preflight
func (m *Metrics) RecordGPURejection(ctx context.Context, stack string) {
	m.gpuRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stack", stack),
	))
}

// RecordExit records a finished run observed by WaitService
func (m *Metrics) RecordExit(ctx context.Context, state, stack string, duration time.Duration) {
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("state", state),
		attribute.String("stack", stack),
	))
}
