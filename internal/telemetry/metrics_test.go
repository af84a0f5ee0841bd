package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	rec, err := NewRecorder(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rec.RecordRun(ctx, "brand-positioning", OutcomeGenerated, 120*time.Millisecond)
	rec.RecordRun(ctx, "brand-positioning", OutcomeCacheHit, time.Millisecond)
	rec.RecordPersistenceFailure(ctx, "brand-positioning", "cache_write")
	rec.RecordLead(ctx, true)

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "brandflow.flow.runs")
	require.NotNil(t, runs)
	sum, ok := runs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)
	assert.Len(t, sum.DataPoints, 2, "one series per outcome")

	latency := findMetric(rm, "brandflow.flow.latency_ms")
	require.NotNil(t, latency)
	_, ok = latency.Data.(metricdata.Histogram[float64])
	assert.True(t, ok)

	assert.NotNil(t, findMetric(rm, "brandflow.persistence.failures"))
	assert.NotNil(t, findMetric(rm, "brandflow.leads.submitted"))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = Noop{}
	r.RecordRun(context.Background(), "x", OutcomeFailed, time.Second)
}

func TestSetupPrometheusHandler(t *testing.T) {
	p, err := Setup(Options{Metrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	p.Recorder.RecordRun(context.Background(), "chatbot", OutcomeGenerated, 5*time.Millisecond)

	h := p.Handler()
	require.NotNil(t, h)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	assert.True(t, strings.Contains(string(body), "brandflow_flow_runs"), "exposition missing counter:\n%s", body)
}

func TestSetupDisabled(t *testing.T) {
	p, err := Setup(Options{})
	require.NoError(t, err)
	assert.Nil(t, p.Handler())
	_, isNoop := p.Recorder.(Noop)
	assert.True(t, isNoop)
	assert.NoError(t, p.Shutdown(context.Background()))
}
