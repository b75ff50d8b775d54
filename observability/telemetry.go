// Package observability provides OpenTelemetry integration and a
// structured audit trail for command execution.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides tracing and metrics around invocations. It
// satisfies the executor's Telemetry dependency.
type Telemetry interface {
	// StartSpan starts a trace span; the returned function ends it.
	StartSpan(ctx context.Context, name string) (context.Context, func())

	// RecordMetric records a duration metric in milliseconds.
	RecordMetric(name string, value float64, labels map[string]string)

	// RecordCounter increments the invocation counter.
	RecordCounter(name string, labels map[string]string)
}

// TelemetryConfig configures telemetry.
type TelemetryConfig struct {
	// ServiceName names the tracer and meter.
	ServiceName string

	// MetricsPrefix prefixes all metric names.
	MetricsPrefix string

	// EnableTracing enables span creation.
	EnableTracing bool

	// EnableMetrics enables metric recording.
	EnableMetrics bool
}

// DefaultTelemetryConfig returns the default configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		ServiceName:   "gitsafe",
		MetricsPrefix: "gitsafe_",
		EnableTracing: true,
		EnableMetrics: true,
	}
}

type telemetry struct {
	config TelemetryConfig
	tracer trace.Tracer
	meter  metric.Meter

	invocationCounter  metric.Int64Counter
	invocationDuration metric.Float64Histogram
}

// NewTelemetry creates an OpenTelemetry-backed Telemetry.
func NewTelemetry(config TelemetryConfig) (Telemetry, error) {
	t := &telemetry{
		config: config,
		tracer: otel.Tracer(config.ServiceName),
		meter:  otel.Meter(config.ServiceName),
	}

	var err error
	t.invocationCounter, err = t.meter.Int64Counter(
		config.MetricsPrefix+"invocations_total",
		metric.WithDescription("Total number of command invocations"),
	)
	if err != nil {
		return nil, err
	}

	t.invocationDuration, err = t.meter.Float64Histogram(
		config.MetricsPrefix+"invocation_duration_ms",
		metric.WithDescription("Duration of command invocations"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// StartSpan implements Telemetry.StartSpan.
func (t *telemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	if !t.config.EnableTracing {
		return ctx, func() {}
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func() {
		span.End()
	}
}

// RecordMetric implements Telemetry.RecordMetric.
func (t *telemetry) RecordMetric(name string, value float64, labels map[string]string) {
	if !t.config.EnableMetrics {
		return
	}
	attrs := labelsToAttributes(labels)
	t.invocationDuration.Record(context.Background(), value, metric.WithAttributes(attrs...))
}

// RecordCounter implements Telemetry.RecordCounter.
func (t *telemetry) RecordCounter(name string, labels map[string]string) {
	if !t.config.EnableMetrics {
		return
	}
	attrs := labelsToAttributes(labels)
	t.invocationCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func labelsToAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// NoopTelemetry returns a telemetry implementation that does nothing.
func NoopTelemetry() Telemetry {
	return &noopTelemetry{}
}

type noopTelemetry struct{}

func (t *noopTelemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *noopTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}
func (t *noopTelemetry) RecordCounter(name string, labels map[string]string)               {}
