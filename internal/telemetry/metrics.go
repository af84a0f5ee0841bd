// Package telemetry wires OpenTelemetry metrics and tracing for flows,
// exported through a Prometheus scrape endpoint and optionally stdout spans.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels for flow runs.
const (
	OutcomeGenerated = "generated"
	OutcomeCacheHit  = "cache_hit"
	OutcomeShared    = "shared"
	OutcomeFallback  = "fallback"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Recorder records flow metrics. Use NewRecorder for OTel metrics or
// Noop{} when metrics are disabled.
type Recorder interface {
	// RecordRun records one flow invocation with its outcome and latency.
	RecordRun(ctx context.Context, flow, outcome string, d time.Duration)

	// RecordPersistenceFailure counts a swallowed cache or log write error.
	RecordPersistenceFailure(ctx context.Context, flow, op string)

	// RecordLead counts a forwarded lead submission.
	RecordLead(ctx context.Context, success bool)
}

type otelRecorder struct {
	runs        metric.Int64Counter
	latency     metric.Float64Histogram
	persistence metric.Int64Counter
	leads       metric.Int64Counter
}

// NewRecorder creates a Recorder on meter.
func NewRecorder(meter metric.Meter) (Recorder, error) {
	runs, err := meter.Int64Counter("brandflow.flow.runs",
		metric.WithDescription("Number of flow invocations by outcome"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("brandflow.flow.latency_ms",
		metric.WithDescription("Flow invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	persistence, err := meter.Int64Counter("brandflow.persistence.failures",
		metric.WithDescription("Cache or execution-log writes that failed and were skipped"),
	)
	if err != nil {
		return nil, err
	}
	leads, err := meter.Int64Counter("brandflow.leads.submitted",
		metric.WithDescription("Lead submissions forwarded to the lead function"),
	)
	if err != nil {
		return nil, err
	}
	return &otelRecorder{runs: runs, latency: latency, persistence: persistence, leads: leads}, nil
}

func (r *otelRecorder) RecordRun(ctx context.Context, flow, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	)
	r.runs.Add(ctx, 1, attrs)
	r.latency.Record(ctx, float64(d.Microseconds())/1000, attrs)
}

func (r *otelRecorder) RecordPersistenceFailure(ctx context.Context, flow, op string) {
	r.persistence.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("op", op),
	))
}

func (r *otelRecorder) RecordLead(ctx context.Context, success bool) {
	r.leads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordRun(context.Context, string, string, time.Duration) {}
func (Noop) RecordPersistenceFailure(context.Context, string, string) {}
func (Noop) RecordLead(context.Context, bool) {}
