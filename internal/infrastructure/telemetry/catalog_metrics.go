package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// CatalogMeterName is the meter name for category tree metrics
const CatalogMeterName = "storefront-backend/catalog"

// CatalogMetrics records category tree maintenance metrics.
// It satisfies the catalog application's TreeMetrics port.
type CatalogMetrics struct {
	pathWrites    *Counter
	recomputeTime *Histogram
	movesRejected *Counter
}

// NewCatalogMetrics registers the catalog instruments on meter
func NewCatalogMetrics(meter metric.Meter) (*CatalogMetrics, error) {
	pathWrites, err := NewCounter(meter,
		"catalog.category.path_writes",
		"Number of category path and level rows written",
		"{row}",
	)
	if err != nil {
		return nil, err
	}

	recomputeTime, err := NewHistogram(meter, HistogramOpts{
		Name:        "catalog.category.recompute.duration",
		Description: "Duration of subtree recompute and full rebuild runs",
		Unit:        "s",
		Boundaries:  TreeDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	movesRejected, err := NewCounter(meter,
		"catalog.category.move.rejected",
		"Number of category moves rejected by validation",
		"{move}",
	)
	if err != nil {
		return nil, err
	}

	return &CatalogMetrics{
		pathWrites:    pathWrites,
		recomputeTime: recomputeTime,
		movesRejected: movesRejected,
	}, nil
}

// RecordPathWrites adds nodes to the path write counter
func (m *CatalogMetrics) RecordPathWrites(ctx context.Context, operation string, nodes int) {
	if nodes <= 0 {
		return
	}
	m.pathWrites.Add(ctx, int64(nodes), AttrOperation.String(operation))
}

// RecordRecomputeDuration records how long a tree maintenance run took
func (m *CatalogMetrics) RecordRecomputeDuration(ctx context.Context, operation string, d time.Duration) {
	m.recomputeTime.RecordDuration(ctx, d, AttrOperation.String(operation))
}

// RecordMoveRejected counts a rejected move by reason code
func (m *CatalogMetrics) RecordMoveRejected(ctx context.Context, reason string) {
	m.movesRejected.Inc(ctx, AttrReason.String(reason))
}
