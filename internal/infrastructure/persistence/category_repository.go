package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	treeOrder    = "level ASC, sort_order ASC, name ASC"
	siblingOrder = "sort_order ASC, name ASC"
	batchSize    = 200
)

// likeEscaper escapes LIKE wildcards so user supplied prefixes match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GormCategoryRepository implements catalog.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) model(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.CategoryModel{})
}

// FindByID finds a category by its ID
func (r *GormCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find category %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// FindChildren returns the direct children of parentID ordered by sort order
func (r *GormCategoryRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]catalog.Category, error) {
	var ms []models.CategoryModel
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order(siblingOrder).
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("find children of %s: %w", parentID, err)
	}
	return models.CategoryModelsToDomain(ms), nil
}

// FindRoots returns categories without a parent ordered by sort order
func (r *GormCategoryRepository) FindRoots(ctx context.Context) ([]catalog.Category, error) {
	var ms []models.CategoryModel
	if err := r.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order(siblingOrder).
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("find root categories: %w", err)
	}
	return models.CategoryModelsToDomain(ms), nil
}

// FindActiveByPathPrefix returns active categories at or below prefix.
// Matching is per path segment: "/books" selects "/books" and "/books/..."
// but not "/bookshelves".
func (r *GormCategoryRepository) FindActiveByPathPrefix(ctx context.Context, prefix string) ([]catalog.Category, error) {
	prefix = catalog.NormalizePathPrefix(prefix)

	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if prefix != "" {
		pattern := likeEscaper.Replace(prefix+catalog.PathSeparator) + "%"
		query = query.Where(`path = ? OR path LIKE ? ESCAPE '\'`, prefix, pattern)
	}

	var ms []models.CategoryModel
	if err := query.Order(treeOrder).Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("find categories by path prefix %q: %w", prefix, err)
	}
	return models.CategoryModelsToDomain(ms), nil
}

// FindAllActive returns every active category ordered by level then sort order
func (r *GormCategoryRepository) FindAllActive(ctx context.Context) ([]catalog.Category, error) {
	return r.FindActiveByPathPrefix(ctx, "")
}

// ExistsSiblingSlug checks whether another child of parentID uses slug
func (r *GormCategoryRepository) ExistsSiblingSlug(ctx context.Context, parentID *uuid.UUID, slug string, excludeID uuid.UUID) (bool, error) {
	query := r.model(ctx).Where("slug = ? AND id <> ?", slug, excludeID)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check sibling slug %q: %w", slug, err)
	}
	return count > 0, nil
}

// UpdatePath writes the derived path and level of a single category
func (r *GormCategoryRepository) UpdatePath(ctx context.Context, id uuid.UUID, path string, level int) error {
	result := r.model(ctx).
		Where("id = ?", id).
		Updates(map[string]any{
			"path":       path,
			"level":      level,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update path of %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateParent writes the parent pointer of a single category
func (r *GormCategoryRepository) UpdateParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	var parent any
	if parentID != nil {
		parent = *parentID
	}

	result := r.model(ctx).
		Where("id = ?", id).
		Updates(map[string]any{
			"parent_id":  parent,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update parent of %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindAll finds all categories matching the filter
func (r *GormCategoryRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Category, error) {
	var ms []models.CategoryModel
	if err := r.applyFilter(r.model(ctx), filter).Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return models.CategoryModelsToDomain(ms), nil
}

// Count counts categories matching the filter
func (r *GormCategoryRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyFilterWithoutPagination(r.model(ctx), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return count, nil
}

// Save creates or updates a category
func (r *GormCategoryRepository) Save(ctx context.Context, category *catalog.Category) error {
	m := models.CategoryModelFromDomain(category)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(m).Error; err != nil {
		return fmt.Errorf("save category %s: %w", category.ID, err)
	}
	return nil
}

// UpdateAttributes writes the columns that do not shape the tree. Unlike
// Save it never rewrites parent_id, slug, path or level, so a concurrent
// move of the same row keeps its new position.
func (r *GormCategoryRepository) UpdateAttributes(ctx context.Context, category *catalog.Category) error {
	result := r.model(ctx).
		Where("id = ?", category.ID).
		Updates(map[string]any{
			"name":        category.Name,
			"description": category.Description,
			"sort_order":  category.SortOrder,
			"is_active":   category.IsActive,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update attributes of %s: %w", category.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SaveBatch creates or updates several categories, chunked into multi-row inserts
func (r *GormCategoryRepository) SaveBatch(ctx context.Context, categories []*catalog.Category) error {
	if len(categories) == 0 {
		return nil
	}
	ms := make([]*models.CategoryModel, len(categories))
	for i, c := range categories {
		ms[i] = models.CategoryModelFromDomain(c)
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(ms, batchSize).Error; err != nil {
		return fmt.Errorf("save %d categories: %w", len(categories), err)
	}
	return nil
}

// Delete deletes a category
func (r *GormCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.CategoryModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete category %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// HasChildren checks if a category has any children
func (r *GormCategoryRepository) HasChildren(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.model(ctx).
		Where("parent_id = ?", id).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check children of %s: %w", id, err)
	}
	return count > 0, nil
}

// applyFilter applies filter options, ordering and pagination to the query
func (r *GormCategoryRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	orderBy := ValidateSortField(filter.OrderBy, CategorySortFields, "sort_order")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	if orderBy != "name" {
		query = query.Order("name ASC")
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}
	return query
}

// applyFilterWithoutPagination applies search and field filters
func (r *GormCategoryRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		op := "LIKE"
		if r.db.Dialector.Name() == "postgres" {
			op = "ILIKE"
		}
		query = query.Where(
			fmt.Sprintf(`name %[1]s ? ESCAPE '\' OR slug %[1]s ? ESCAPE '\'`, op),
			pattern, pattern,
		)
	}

	for key, value := range filter.Filters {
		switch key {
		case "is_active":
			query = query.Where("is_active = ?", value)
		case "parent_id":
			if value == nil {
				query = query.Where("parent_id IS NULL")
			} else {
				query = query.Where("parent_id = ?", value)
			}
		case "level":
			query = query.Where("level = ?", value)
		}
	}
	return query
}

var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
