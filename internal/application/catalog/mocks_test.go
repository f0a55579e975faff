package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockCategoryRepository is a mock implementation of CategoryRepository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]catalog.Category, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindRoots(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindActiveByPathPrefix(ctx context.Context, prefix string) ([]catalog.Category, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindAllActive(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) ExistsSiblingSlug(ctx context.Context, parentID *uuid.UUID, slug string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, parentID, slug, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCategoryRepository) UpdatePath(ctx context.Context, id uuid.UUID, path string, level int) error {
	args := m.Called(ctx, id, path, level)
	return args.Error(0)
}

func (m *MockCategoryRepository) UpdateParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	args := m.Called(ctx, id, parentID)
	return args.Error(0)
}

func (m *MockCategoryRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Category, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCategoryRepository) Save(ctx context.Context, category *catalog.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) UpdateAttributes(ctx context.Context, category *catalog.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) SaveBatch(ctx context.Context, categories []*catalog.Category) error {
	args := m.Called(ctx, categories)
	return args.Error(0)
}

func (m *MockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCategoryRepository) HasChildren(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockTreeLock is a mock implementation of TreeLock
type MockTreeLock struct {
	mock.Mock
	released int
}

func (m *MockTreeLock) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}

// MockTreeCache is a mock implementation of TreeCache
type MockTreeCache struct {
	mock.Mock
}

func (m *MockTreeCache) Get(ctx context.Context, depth int) (TreeLookup, error) {
	args := m.Called(ctx, depth)
	return args.Get(0).(TreeLookup), args.Error(1)
}

func (m *MockTreeCache) Set(ctx context.Context, depth int, generation int64, tree []CategoryTreeNode) (bool, error) {
	args := m.Called(ctx, depth, generation, tree)
	return args.Bool(0), args.Error(1)
}

func (m *MockTreeCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockTreeMetrics is a mock implementation of TreeMetrics
type MockTreeMetrics struct {
	mock.Mock
}

func (m *MockTreeMetrics) RecordPathWrites(ctx context.Context, operation string, nodes int) {
	m.Called(ctx, operation, nodes)
}

func (m *MockTreeMetrics) RecordRecomputeDuration(ctx context.Context, operation string, d time.Duration) {
	m.Called(ctx, operation, d)
}

func (m *MockTreeMetrics) RecordMoveRejected(ctx context.Context, reason string) {
	m.Called(ctx, reason)
}

var (
	_ catalog.CategoryRepository = (*MockCategoryRepository)(nil)
	_ TreeLock                   = (*MockTreeLock)(nil)
	_ TreeCache                  = (*MockTreeCache)(nil)
	_ shared.EventPublisher      = (*MockEventPublisher)(nil)
	_ TreeMetrics                = (*MockTreeMetrics)(nil)
)
