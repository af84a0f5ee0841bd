package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const meterName = "github.com/brandflow/brandflow"

// Options selects which signals are exported.
type Options struct {
	Metrics     bool
	TraceStdout bool
}

// Provider owns the SDK providers created by Setup.
type Provider struct {
	Recorder Recorder

	registry *prometheus.Registry
	meters   *sdkmetric.MeterProvider
	tracers  *sdktrace.TracerProvider
}

// Setup installs global meter and tracer providers according to opts.
// With everything disabled it returns a Noop recorder and no handler.
func Setup(opts Options) (*Provider, error) {
	p := &Provider{Recorder: Noop{}}

	if opts.Metrics {
		p.registry = prometheus.NewRegistry()
		exp, err := otelprom.New(otelprom.WithRegisterer(p.registry))
		if err != nil {
			return nil, fmt.Errorf("creating Prometheus exporter: %w", err)
		}
		p.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
		otel.SetMeterProvider(p.meters)

		rec, err := NewRecorder(p.meters.Meter(meterName))
		if err != nil {
			return nil, fmt.Errorf("creating instruments: %w", err)
		}
		p.Recorder = rec
	} else {
		otel.SetMeterProvider(noop.NewMeterProvider())
	}

	if opts.TraceStdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		p.tracers = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(p.tracers)
	}

	return p, nil
}

// Handler serves the Prometheus exposition format, or nil when metrics are
// disabled.
func (p *Provider) Handler() http.Handler {
	if p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.meters != nil {
		errs = append(errs, p.meters.Shutdown(ctx))
	}
	if p.tracers != nil {
		errs = append(errs, p.tracers.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
