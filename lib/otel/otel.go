// Package otel wires the OpenTelemetry SDK: OTLP exporters for traces,
// metrics and logs, plus the slog bridge. Everything is gated on
// OTEL_EXPORTER_OTLP_ENDPOINT; without it the providers are no-ops and
// the daemon logs to stdout only.
package otel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "trainstack"

// Providers bundles the configured OTel entry points.
type Providers struct {
	Tracer trace.TracerProvider
	Meter  metric.Meter

	// LogHandler is a slog handler that ships records over OTLP, nil
	// when telemetry is disabled.
	LogHandler slog.Handler

	shutdownFns []func(context.Context) error
}

// Enabled reports whether an OTLP endpoint was configured.
func Enabled() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// Setup configures the OTel SDK. When no OTLP endpoint is set it returns
// no-op providers so callers never need to branch.
func Setup(ctx context.Context) (*Providers, error) {
	if !Enabled() {
		return &Providers{
			Tracer: otel.GetTracerProvider(),
			Meter:  otel.GetMeterProvider().Meter(serviceName),
		}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	p := &Providers{}

	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	p.Tracer = tracerProvider
	p.shutdownFns = append(p.shutdownFns, tracerProvider.Shutdown)

	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)
	p.Meter = meterProvider.Meter(serviceName)
	p.shutdownFns = append(p.shutdownFns, meterProvider.Shutdown)

	logExporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	p.LogHandler = otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(loggerProvider))
	p.shutdownFns = append(p.shutdownFns, loggerProvider.Shutdown)

	// Go runtime metrics (GC, goroutines, memory) ride along for free.
	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("start runtime instrumentation: %w", err)
	}

	return p, nil
}

// Shutdown flushes and stops every configured provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var firstErr error
	for _, fn := range p.shutdownFns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
