package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

var errStoreDown = errors.New("store unavailable")

// memoryStore is an in-memory TreeStore used by the domain tests
type memoryStore struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]Category
	pathWrites int
	// failPathWriteAt makes the n-th UpdatePath call (1-based) fail
	failPathWriteAt int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[uuid.UUID]Category)}
}

func (s *memoryStore) put(c *Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[c.ID] = *c
}

func (s *memoryStore) get(id uuid.UUID) Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

// corrupt overwrites the stored path and level without touching anything else
func (s *memoryStore) corrupt(id uuid.UUID, path string, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.rows[id]
	c.Path, c.Level = path, level
	s.rows[id] = c
}

func (s *memoryStore) sorted(match func(c Category) bool, byLevel bool) []Category {
	out := make([]Category, 0)
	for _, c := range s.rows {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if byLevel && out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *memoryStore) FindByID(_ context.Context, id uuid.UUID) (*Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (s *memoryStore) FindChildren(_ context.Context, parentID uuid.UUID) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c Category) bool {
		return c.ParentID != nil && *c.ParentID == parentID
	}, false), nil
}

func (s *memoryStore) FindRoots(_ context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c Category) bool { return c.ParentID == nil }, false), nil
}

func (s *memoryStore) FindActiveByPathPrefix(_ context.Context, prefix string) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c Category) bool {
		return c.IsActive && PathHasPrefix(c.Path, prefix)
	}, true), nil
}

func (s *memoryStore) FindAllActive(_ context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c Category) bool { return c.IsActive }, true), nil
}

func (s *memoryStore) ExistsSiblingSlug(_ context.Context, parentID *uuid.UUID, slug string, excludeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.rows {
		if c.ID != excludeID && c.Slug == slug && c.HasParent(parentID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) UpdatePath(_ context.Context, id uuid.UUID, path string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathWrites++
	if s.failPathWriteAt > 0 && s.pathWrites == s.failPathWriteAt {
		return errStoreDown
	}
	c, ok := s.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.Path, c.Level = path, level
	s.rows[id] = c
	return nil
}

func (s *memoryStore) UpdateParent(_ context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.ParentID = parentID
	s.rows[id] = c
	return nil
}

var _ TreeStore = (*memoryStore)(nil)
