package catalog

import (
	"context"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TreeCacheInvalidator drops cached category trees whenever an event that
// changes the tree is published
type TreeCacheInvalidator struct {
	cache  TreeCache
	logger *zap.Logger
}

// NewTreeCacheInvalidator creates a TreeCacheInvalidator
func NewTreeCacheInvalidator(cache TreeCache, logger *zap.Logger) *TreeCacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeCacheInvalidator{cache: cache, logger: logger}
}

// EventTypes returns the tree-shape events
func (h *TreeCacheInvalidator) EventTypes() []string {
	return catalog.TreeShapeEventTypes
}

// Handle invalidates the tree cache
func (h *TreeCacheInvalidator) Handle(ctx context.Context, event shared.DomainEvent) error {
	if err := h.cache.Invalidate(ctx); err != nil {
		return err
	}
	h.logger.Debug("category tree cache invalidated",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
	)
	return nil
}

var _ shared.EventHandler = (*TreeCacheInvalidator)(nil)
