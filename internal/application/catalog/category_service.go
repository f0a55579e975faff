package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CategoryService handles category-related business operations. Every
// operation that changes the tree shape holds the tree lock and runs inside
// the transaction scope; events are published after the write commits.
type CategoryService struct {
	repo      catalog.CategoryRepository
	txScope   TransactionScope
	lock      TreeLock
	cache     TreeCache
	publisher shared.EventPublisher
	metrics   TreeMetrics
	logger    *zap.Logger
	maxDepth  int
}

// ServiceOption configures a CategoryService
type ServiceOption func(*CategoryService)

// WithTransactionScope runs tree writes inside scope
func WithTransactionScope(scope TransactionScope) ServiceOption {
	return func(s *CategoryService) {
		if scope != nil {
			s.txScope = scope
		}
	}
}

// WithTreeLock serializes tree writes through lock
func WithTreeLock(lock TreeLock) ServiceOption {
	return func(s *CategoryService) {
		if lock != nil {
			s.lock = lock
		}
	}
}

// WithTreeCache serves GetTree through cache
func WithTreeCache(cache TreeCache) ServiceOption {
	return func(s *CategoryService) {
		s.cache = cache
	}
}

// WithEventPublisher publishes category events through publisher
func WithEventPublisher(publisher shared.EventPublisher) ServiceOption {
	return func(s *CategoryService) {
		s.publisher = publisher
	}
}

// WithMetrics records tree maintenance metrics
func WithMetrics(metrics TreeMetrics) ServiceOption {
	return func(s *CategoryService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *CategoryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxDepth limits the number of tree levels
func WithMaxDepth(depth int) ServiceOption {
	return func(s *CategoryService) {
		s.maxDepth = depth
	}
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(repo catalog.CategoryRepository, opts ...ServiceOption) *CategoryService {
	s := &CategoryService{
		repo:     repo,
		txScope:  NewNoOpTransactionScope(repo),
		lock:     noopTreeLock{},
		metrics:  noopTreeMetrics{},
		logger:   zap.NewNop(),
		maxDepth: catalog.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CategoryService) maintainer(store catalog.TreeStore) *catalog.TreeMaintainer {
	return catalog.NewTreeMaintainer(store, catalog.WithMaxDepth(s.maxDepth))
}

// writeTree runs fn under the tree lock inside one transaction
func (s *CategoryService) writeTree(ctx context.Context, fn func(repo catalog.CategoryRepository, tm *catalog.TreeMaintainer) error) error {
	release, err := s.lock.Acquire(ctx, TreeLockKey)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release category tree lock", zap.Error(err))
		}
	}()

	return s.txScope.Execute(ctx, func(repo catalog.CategoryRepository) error {
		return fn(repo, s.maintainer(repo))
	})
}

func (s *CategoryService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish category events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// recompute runs a subtree recomputation and records its metrics
func (s *CategoryService) recompute(ctx context.Context, tm *catalog.TreeMaintainer, operation string, id uuid.UUID) (int, error) {
	start := time.Now()
	n, err := tm.RecomputeSubtree(ctx, id)
	s.metrics.RecordRecomputeDuration(ctx, operation, time.Since(start))
	if n > 0 {
		s.metrics.RecordPathWrites(ctx, operation, n)
	}
	return n, err
}

// Create creates a category and computes its path before returning
func (s *CategoryService) Create(ctx context.Context, req CreateCategoryRequest) (*CategoryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "category", "create")
	defer span.End()

	category, err := catalog.NewCategory(req.Name, req.Slug, req.ParentID)
	if err != nil {
		return nil, err
	}
	category.Description = req.Description
	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}

	err = s.writeTree(ctx, func(repo catalog.CategoryRepository, tm *catalog.TreeMaintainer) error {
		if req.ParentID != nil {
			parent, err := repo.FindByID(ctx, *req.ParentID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.ErrNotFound.WithMessage("parent category %s not found", *req.ParentID)
				}
				return err
			}
			if err := tm.CheckDepth(parent.Level + 1); err != nil {
				return err
			}
		}

		if err := s.ensureSlugFree(ctx, repo, req.ParentID, category.Slug, category.ID); err != nil {
			return err
		}
		if err := repo.Save(ctx, category); err != nil {
			return fmt.Errorf("save category: %w", err)
		}
		_, err := s.recompute(ctx, tm, "create", category.ID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	stored, err := s.repo.FindByID(ctx, category.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, category.GetDomainEvents()...)
	category.ClearDomainEvents()

	s.logger.Info("category created",
		zap.String("category_id", stored.ID.String()),
		zap.String("path", stored.Path),
	)
	telemetry.SetOK(span)
	resp := ToCategoryResponse(stored)
	return &resp, nil
}

func (s *CategoryService) ensureSlugFree(ctx context.Context, repo catalog.CategoryRepository, parentID *uuid.UUID, slug string, excludeID uuid.UUID) error {
	taken, err := repo.ExistsSiblingSlug(ctx, parentID, slug, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return catalog.ErrDuplicateSlug.WithMessage("a sibling category with slug %q already exists", slug)
	}
	return nil
}

// GetByID retrieves a category by ID
func (s *CategoryService) GetByID(ctx context.Context, id uuid.UUID) (*CategoryResponse, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCategoryResponse(category)
	return &resp, nil
}

// List retrieves a page of categories
func (s *CategoryService) List(ctx context.Context, filter CategoryListFilter) ([]CategoryResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	domainFilter.Search = filter.Search

	if filter.IsActive != nil {
		domainFilter.Filters["is_active"] = *filter.IsActive
	}
	if filter.ParentID != nil {
		domainFilter.Filters["parent_id"] = *filter.ParentID
	} else if filter.RootsOnly {
		domainFilter.Filters["parent_id"] = nil
	}

	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}

	categories, err := s.repo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToCategoryResponses(categories), total, nil
}

// Update changes name, description or sort order. Only those columns are
// written, so no tree lock is needed and a concurrent move is preserved.
func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, req UpdateCategoryRequest) (*CategoryResponse, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, description, sortOrder := category.Name, category.Description, category.SortOrder
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.SortOrder != nil {
		sortOrder = *req.SortOrder
	}
	if err := category.Update(name, description, sortOrder); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAttributes(ctx, category); err != nil {
		return nil, err
	}
	s.publish(ctx, category.GetDomainEvents()...)
	category.ClearDomainEvents()

	resp := ToCategoryResponse(category)
	return &resp, nil
}

// ChangeSlug renames the category's path segment and recomputes the paths
// of the category and all of its descendants.
func (s *CategoryService) ChangeSlug(ctx context.Context, id uuid.UUID, req ChangeSlugRequest) (*CategoryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "category", "change_slug")
	defer span.End()

	var category *catalog.Category
	err := s.writeTree(ctx, func(repo catalog.CategoryRepository, tm *catalog.TreeMaintainer) error {
		var err error
		category, err = repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if category.Slug == req.Slug {
			return nil
		}
		if err := s.ensureSlugFree(ctx, repo, category.ParentID, req.Slug, category.ID); err != nil {
			return err
		}
		if err := category.ChangeSlug(req.Slug); err != nil {
			return err
		}
		if err := repo.Save(ctx, category); err != nil {
			return fmt.Errorf("save category: %w", err)
		}
		n, err := s.recompute(ctx, tm, "change_slug", category.ID)
		telemetry.SetAttributes(span, "category.nodes_updated", n)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, category.GetDomainEvents()...)
	category.ClearDomainEvents()

	stored, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	telemetry.SetOK(span)
	resp := ToCategoryResponse(stored)
	return &resp, nil
}

// Move reparents a category under newParentID, or to the root when nil
func (s *CategoryService) Move(ctx context.Context, id uuid.UUID, req MoveCategoryRequest) (*MoveCategoryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "category", "move")
	defer span.End()
	telemetry.SetAttributes(span, "category.id", id.String())

	var result *catalog.MoveResult
	err := s.writeTree(ctx, func(_ catalog.CategoryRepository, tm *catalog.TreeMaintainer) error {
		start := time.Now()
		var err error
		result, err = tm.Move(ctx, id, req.ParentID)
		s.metrics.RecordRecomputeDuration(ctx, "move", time.Since(start))
		if result != nil {
			s.metrics.RecordPathWrites(ctx, "move", result.NodesUpdated)
		}
		return err
	})
	if err != nil {
		s.recordMoveRejected(ctx, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, catalog.NewCategoryMovedEvent(id, result.OldParentID, result.NewParentID, result.NodesUpdated))
	s.logger.Info("category moved",
		zap.String("category_id", id.String()),
		zap.String("path", result.Category.Path),
		zap.Int("nodes_updated", result.NodesUpdated),
	)
	telemetry.SetOK(span)

	return &MoveCategoryResponse{
		Category:     ToCategoryResponse(result.Category),
		OldParentID:  result.OldParentID,
		NewParentID:  result.NewParentID,
		NodesUpdated: result.NodesUpdated,
	}, nil
}

// ValidateMove reports whether the category may be moved under the requested
// parent without closing a cycle. It never writes.
func (s *CategoryService) ValidateMove(ctx context.Context, id uuid.UUID, req MoveCategoryRequest) (*ValidateMoveResponse, error) {
	tm := s.maintainer(s.repo)
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	valid, err := tm.ValidateMove(ctx, id, req.ParentID)
	if err != nil {
		return nil, err
	}
	return &ValidateMoveResponse{Valid: valid}, nil
}

func (s *CategoryService) recordMoveRejected(ctx context.Context, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		s.metrics.RecordMoveRejected(ctx, domainErr.Code)
	}
}

// Activate makes a category visible to read queries
func (s *CategoryService) Activate(ctx context.Context, id uuid.UUID) (*CategoryResponse, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate hides a category from read queries
func (s *CategoryService) Deactivate(ctx context.Context, id uuid.UUID) (*CategoryResponse, error) {
	return s.setActive(ctx, id, false)
}

func (s *CategoryService) setActive(ctx context.Context, id uuid.UUID, active bool) (*CategoryResponse, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if active {
		err = category.Activate()
	} else {
		err = category.Deactivate()
	}
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAttributes(ctx, category); err != nil {
		return nil, err
	}
	s.publish(ctx, category.GetDomainEvents()...)
	category.ClearDomainEvents()

	resp := ToCategoryResponse(category)
	return &resp, nil
}

// Delete removes a category that has no children
func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	var category *catalog.Category
	err := s.writeTree(ctx, func(repo catalog.CategoryRepository, _ *catalog.TreeMaintainer) error {
		var err error
		category, err = repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		hasChildren, err := repo.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if hasChildren {
			return catalog.ErrHasChildren.WithMessage("category %s still has child categories; move or delete them first", id)
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, catalog.NewCategoryDeletedEvent(category))
	s.logger.Info("category deleted",
		zap.String("category_id", id.String()),
		zap.String("path", category.Path),
	)
	return nil
}

// GetAncestors returns the breadcrumb trail above a category, root first
func (s *CategoryService) GetAncestors(ctx context.Context, id uuid.UUID) ([]CategoryResponse, error) {
	ancestors, err := s.maintainer(s.repo).GetAncestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToCategoryResponses(ancestors), nil
}

// GetDescendants returns every category below id
func (s *CategoryService) GetDescendants(ctx context.Context, id uuid.UUID) ([]CategoryResponse, error) {
	descendants, err := s.maintainer(s.repo).GetDescendants(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToCategoryResponses(descendants), nil
}

// GetChildren returns the direct children of a category
func (s *CategoryService) GetChildren(ctx context.Context, id uuid.UUID) ([]CategoryResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	children, err := s.repo.FindChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToCategoryResponses(children), nil
}

// GetByPathPrefix returns active categories at or below a path prefix
func (s *CategoryService) GetByPathPrefix(ctx context.Context, prefix string) ([]CategoryResponse, error) {
	categories, err := s.maintainer(s.repo).GetByPathPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return ToCategoryResponses(categories), nil
}

// GetTree returns the active category forest, served from the tree cache
// when one is configured. A nil maxDepth returns every level.
func (s *CategoryService) GetTree(ctx context.Context, maxDepth *int) ([]CategoryTreeNode, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "category", "get_tree")
	defer span.End()

	depth := -1
	if maxDepth != nil && *maxDepth >= 0 {
		depth = *maxDepth
	}

	var generation int64
	cacheable := false
	if s.cache != nil {
		lookup, err := s.cache.Get(ctx, depth)
		switch {
		case err != nil:
			s.logger.Warn("category tree cache read failed", zap.Error(err))
		case lookup.Hit:
			telemetry.SetAttributes(span, "cache.hit", true)
			return lookup.Tree, nil
		default:
			generation, cacheable = lookup.Generation, true
		}
	}

	roots, err := s.maintainer(s.repo).GetTree(ctx, &depth)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	tree := ToCategoryTree(roots)

	if cacheable {
		stored, err := s.cache.Set(ctx, depth, generation, tree)
		switch {
		case err != nil:
			s.logger.Warn("category tree cache write failed", zap.Error(err))
		case !stored:
			s.logger.Debug("category tree changed while loading, not cached",
				zap.Int("depth", depth),
				zap.Int64("generation", generation),
			)
		}
	}
	telemetry.SetOK(span)
	return tree, nil
}

// RecomputePath recomputes the path and level of a category and its subtree
func (s *CategoryService) RecomputePath(ctx context.Context, id uuid.UUID) (*RecomputeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "category", "recompute_path")
	defer span.End()

	var written int
	err := s.writeTree(ctx, func(_ catalog.CategoryRepository, tm *catalog.TreeMaintainer) error {
		var err error
		written, err = s.recompute(ctx, tm, "recompute", id)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, catalog.NewCategoryTreeRebuiltEvent(0, written))
	telemetry.SetOK(span)
	return &RecomputeResponse{NodesUpdated: written}, nil
}

// RebuildAll recomputes every path in the forest
func (s *CategoryService) RebuildAll(ctx context.Context) (*RebuildResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "category", "rebuild_all")
	defer span.End()

	var result *catalog.RebuildResult
	err := s.writeTree(ctx, func(_ catalog.CategoryRepository, tm *catalog.TreeMaintainer) error {
		start := time.Now()
		var err error
		result, err = tm.RebuildAll(ctx)
		s.metrics.RecordRecomputeDuration(ctx, "rebuild", time.Since(start))
		if result != nil {
			s.metrics.RecordPathWrites(ctx, "rebuild", result.NodesUpdated)
		}
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, catalog.NewCategoryTreeRebuiltEvent(result.Roots, result.NodesUpdated))
	s.logger.Info("category tree rebuilt",
		zap.Int("roots", result.Roots),
		zap.Int("nodes_updated", result.NodesUpdated),
	)
	telemetry.SetOK(span)
	return &RebuildResponse{Roots: result.Roots, NodesUpdated: result.NodesUpdated}, nil
}
