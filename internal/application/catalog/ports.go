package catalog

import (
	"context"
	"time"

	"github.com/storefront/backend/internal/domain/catalog"
)

// TreeLockKey guards the whole category forest. A move touches two subtrees
// that may live under different roots, so writers serialize on one key.
const TreeLockKey = "catalog:category-tree"

// ReleaseFunc releases a lock obtained from TreeLock
type ReleaseFunc func(ctx context.Context) error

// TreeLock serializes tree writes across goroutines or instances
type TreeLock interface {
	// Acquire blocks until key is held or ctx ends. It returns
	// catalog.ErrTreeLocked when the lock could not be obtained in time.
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// TreeLookup is the result of a tree cache read. Generation names the cache
// state the read observed; a caller filling a miss hands it back to Set.
type TreeLookup struct {
	Tree       []CategoryTreeNode
	Hit        bool
	Generation int64
}

// TreeCache stores assembled category trees keyed by depth limit. Every
// Invalidate starts a new generation, and a tree loaded under an older
// generation is never stored.
type TreeCache interface {
	// Get returns the cached tree for depth together with the current generation
	Get(ctx context.Context, depth int) (TreeLookup, error)
	// Set stores tree for depth only while generation is still current.
	// It reports whether the tree was stored.
	Set(ctx context.Context, depth int, generation int64, tree []CategoryTreeNode) (bool, error)
	// Invalidate drops every cached tree and starts a new generation
	Invalidate(ctx context.Context) error
}

// TransactionScope runs a unit of work against a repository bound to one
// database transaction. If fn returns an error the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repo catalog.CategoryRepository) error) error
}

// TreeMetrics receives counters about tree maintenance
type TreeMetrics interface {
	RecordPathWrites(ctx context.Context, operation string, nodes int)
	RecordRecomputeDuration(ctx context.Context, operation string, d time.Duration)
	RecordMoveRejected(ctx context.Context, reason string)
}

// NoOpTransactionScope runs fn directly against the repository
type NoOpTransactionScope struct {
	repo catalog.CategoryRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(repo catalog.CategoryRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{repo: repo}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repo catalog.CategoryRepository) error) error {
	return fn(s.repo)
}

type noopTreeLock struct{}

func (noopTreeLock) Acquire(context.Context, string) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}

type noopTreeMetrics struct{}

func (noopTreeMetrics) RecordPathWrites(context.Context, string, int)                  {}
func (noopTreeMetrics) RecordRecomputeDuration(context.Context, string, time.Duration) {}
func (noopTreeMetrics) RecordMoveRejected(context.Context, string)                     {}

var (
	_ TransactionScope = (*NoOpTransactionScope)(nil)
	_ TreeLock         = noopTreeLock{}
	_ TreeMetrics      = noopTreeMetrics{}
)
