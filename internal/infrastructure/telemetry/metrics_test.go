package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func int64Sum(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not found", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func float64Sum(t *testing.T, rm metricdata.ResourceMetrics, name string) float64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not found", name)
	sum, ok := m.Data.(metricdata.Sum[float64])
	require.True(t, ok, "metric %s is not a float64 sum", name)
	var total float64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "lexledger-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestCounter(t *testing.T) {
	reader, provider := newTestMeter(t)
	counter, err := NewCounter(provider.Meter("test"), "test_total", "test counter", "{item}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, AttrTenantID.String("t1"))
	counter.Add(ctx, 4, AttrTenantID.String("t1"))

	assert.Equal(t, int64(5), int64Sum(t, collect(t, reader), "test_total"))
}

func TestFloatCounter_IgnoresNegative(t *testing.T) {
	reader, provider := newTestMeter(t)
	counter, err := NewFloatCounter(provider.Meter("test"), "amount_total", "amounts", "{currency_unit}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Add(ctx, 10.5)
	counter.Add(ctx, -3)
	counter.Add(ctx, 0.25)

	assert.InDelta(t, 10.75, float64Sum(t, collect(t, reader), "amount_total"), 0.0001)
}

func TestHistogram_RecordDuration(t *testing.T) {
	reader, provider := newTestMeter(t)
	h, err := NewHistogram(provider.Meter("test"), HistogramOpts{
		Name:        "op_duration_seconds",
		Description: "operation latency",
		Unit:        "s",
		Boundaries:  ServiceDurationBuckets,
	})
	require.NoError(t, err)

	h.RecordDuration(context.Background(), 150*time.Millisecond, attribute.String("op", "post"))

	m, ok := findMetric(collect(t, reader), "op_duration_seconds")
	require.True(t, ok)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.15, hist.DataPoints[0].Sum, 0.0001)
	assert.Equal(t, ServiceDurationBuckets, hist.DataPoints[0].Bounds)
}

func TestGauge_Record(t *testing.T) {
	reader, provider := newTestMeter(t)
	g, err := NewGauge(provider.Meter("test"), "pool_size", "pool", "{connection}")
	require.NoError(t, err)

	g.Record(context.Background(), 3)
	g.Record(context.Background(), 7)

	m, ok := findMetric(collect(t, reader), "pool_size")
	require.True(t, ok)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)
}
