package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// TreeStore is the persistence contract the tree maintainer works against.
// Lookups of a missing id return shared.ErrNotFound.
type TreeStore interface {
	// FindByID finds a category by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Category, error)

	// FindChildren returns the direct children of parentID ordered by sort order
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]Category, error)

	// FindRoots returns categories without a parent ordered by sort order
	FindRoots(ctx context.Context) ([]Category, error)

	// FindActiveByPathPrefix returns active categories at or below a normalized
	// prefix ordered by level then sort order. An empty prefix matches all.
	FindActiveByPathPrefix(ctx context.Context, prefix string) ([]Category, error)

	// FindAllActive returns every active category ordered by level then sort order
	FindAllActive(ctx context.Context) ([]Category, error)

	// ExistsSiblingSlug checks whether another child of parentID uses slug
	ExistsSiblingSlug(ctx context.Context, parentID *uuid.UUID, slug string, excludeID uuid.UUID) (bool, error)

	// UpdatePath writes the derived path and level of a single category
	UpdatePath(ctx context.Context, id uuid.UUID, path string, level int) error

	// UpdateParent writes the parent pointer of a single category
	UpdateParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
}

// CategoryRepository is the full category persistence port
type CategoryRepository interface {
	TreeStore

	// FindAll finds all categories matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Category, error)

	// Count counts categories matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save creates or updates a category
	Save(ctx context.Context, category *Category) error

	// UpdateAttributes writes the name, description, sort order and active
	// flag of one category. Parent, slug, path and level are left as stored.
	UpdateAttributes(ctx context.Context, category *Category) error

	// SaveBatch creates or updates several categories in one statement
	SaveBatch(ctx context.Context, categories []*Category) error

	// Delete deletes a category
	Delete(ctx context.Context, id uuid.UUID) error

	// HasChildren checks if a category has any children
	HasChildren(ctx context.Context, id uuid.UUID) (bool, error)
}
