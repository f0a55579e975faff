package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func newCatalogMetrics(t *testing.T) (*telemetry.CatalogMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewCatalogMetrics(provider.Meter(telemetry.CatalogMeterName))
	require.NoError(t, err)
	return m, reader
}

func TestCatalogMetrics_RecordPathWrites(t *testing.T) {
	m, reader := newCatalogMetrics(t)
	ctx := context.Background()

	m.RecordPathWrites(ctx, "move", 5)
	m.RecordPathWrites(ctx, "move", 2)
	m.RecordPathWrites(ctx, "rebuild", 10)
	m.RecordPathWrites(ctx, "rebuild", 0)

	metrics := collect(t, reader)
	sum, ok := metrics["catalog.category.path_writes"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byOp := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		op, _ := dp.Attributes.Value(telemetry.AttrOperation)
		byOp[op.AsString()] = dp.Value
	}
	assert.Equal(t, int64(7), byOp["move"])
	assert.Equal(t, int64(10), byOp["rebuild"])
}

func TestCatalogMetrics_RecordRecomputeDuration(t *testing.T) {
	m, reader := newCatalogMetrics(t)

	m.RecordRecomputeDuration(context.Background(), "recompute", 30*time.Millisecond)

	metrics := collect(t, reader)
	hist, ok := metrics["catalog.category.recompute.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.03, hist.DataPoints[0].Sum, 0.0001)
	assert.Equal(t, telemetry.TreeDurationBuckets, hist.DataPoints[0].Bounds)
}

func TestCatalogMetrics_RecordMoveRejected(t *testing.T) {
	m, reader := newCatalogMetrics(t)
	ctx := context.Background()

	m.RecordMoveRejected(ctx, "CIRCULAR_REFERENCE")
	m.RecordMoveRejected(ctx, "CIRCULAR_REFERENCE")
	m.RecordMoveRejected(ctx, "MAX_DEPTH_EXCEEDED")

	metrics := collect(t, reader)
	sum, ok := metrics["catalog.category.move.rejected"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byReason := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		reason, _ := dp.Attributes.Value(telemetry.AttrReason)
		byReason[reason.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byReason["CIRCULAR_REFERENCE"])
	assert.Equal(t, int64(1), byReason["MAX_DEPTH_EXCEEDED"])
}

func TestMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}
