package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestTreeCacheInvalidator(t *testing.T) {
	ctx := context.Background()
	c, err := catalog.NewCategory("Electronics", "electronics", nil)
	assert.NoError(t, err)
	event := catalog.NewCategoryMovedEvent(c.ID, nil, nil, 1)

	t.Run("subscribes to tree shape events", func(t *testing.T) {
		h := NewTreeCacheInvalidator(new(MockTreeCache), nil)
		assert.Contains(t, h.EventTypes(), catalog.EventTypeCategoryMoved)
		assert.Contains(t, h.EventTypes(), catalog.EventTypeCategorySlugChanged)
		assert.Contains(t, h.EventTypes(), catalog.EventTypeCategoryTreeRebuilt)
	})

	t.Run("invalidates cache", func(t *testing.T) {
		cache := new(MockTreeCache)
		cache.On("Invalidate", mock.Anything).Return(nil)
		h := NewTreeCacheInvalidator(cache, zap.NewNop())

		assert.NoError(t, h.Handle(ctx, event))
		cache.AssertExpectations(t)
	})

	t.Run("propagates cache errors", func(t *testing.T) {
		cache := new(MockTreeCache)
		cache.On("Invalidate", mock.Anything).Return(errors.New("redis down"))
		h := NewTreeCacheInvalidator(cache, zap.NewNop())

		assert.Error(t, h.Handle(ctx, event))
	})
}
