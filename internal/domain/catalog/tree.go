package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// DefaultMaxDepth is the number of levels a tree may have (levels 0..7)
const DefaultMaxDepth = 8

// TreeMaintainer keeps Path and Level consistent with the ParentID forest.
//
// Path and Level are denormalized and recomputed eagerly on write: a slug
// change or move costs one read and one write per node of the affected
// subtree, and in exchange prefix queries and breadcrumbs are served from
// indexed columns without walking parent pointers.
type TreeMaintainer struct {
	store    TreeStore
	maxDepth int
}

// TreeOption configures a TreeMaintainer
type TreeOption func(*TreeMaintainer)

// WithMaxDepth limits how many levels a tree may have. Zero or less
// disables the check.
func WithMaxDepth(depth int) TreeOption {
	return func(m *TreeMaintainer) {
		m.maxDepth = depth
	}
}

// NewTreeMaintainer creates a TreeMaintainer over store
func NewTreeMaintainer(store TreeStore, opts ...TreeOption) *TreeMaintainer {
	m := &TreeMaintainer{
		store:    store,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxDepth returns the configured depth limit
func (m *TreeMaintainer) MaxDepth() int {
	return m.maxDepth
}

// RecomputePath recomputes the path and level of a category and of every
// category below it. See RecomputeSubtree.
func (m *TreeMaintainer) RecomputePath(ctx context.Context, id uuid.UUID) error {
	_, err := m.RecomputeSubtree(ctx, id)
	return err
}

// RecomputeSubtree sets the path and level of category id from its current
// parent, then walks its subtree breadth first with a FIFO worklist, deriving
// each child from the already written values of its parent. Every node is
// written exactly once and the returned count is the number of writes.
//
// The walk is idempotent: rerunning it after a partial failure repairs the
// whole subtree. The forest must be acyclic on entry; a node reached twice
// aborts the walk with ErrCircularReference.
func (m *TreeMaintainer) RecomputeSubtree(ctx context.Context, id uuid.UUID) (int, error) {
	node, err := m.findCategory(ctx, id)
	if err != nil {
		return 0, err
	}

	var parent *Category
	if node.ParentID != nil {
		parent, err = m.store.FindByID(ctx, *node.ParentID)
		if err != nil {
			return 0, fmt.Errorf("load parent %s of category %s: %w", *node.ParentID, id, err)
		}
	}

	path, level := ComputePath(parent, node.Slug)
	if err := m.store.UpdatePath(ctx, node.ID, path, level); err != nil {
		return 0, fmt.Errorf("update path of category %s: %w", node.ID, err)
	}
	written := 1

	type pending struct {
		id    uuid.UUID
		path  string
		level int
	}
	queue := []pending{{id: node.ID, path: path, level: level}}
	seen := map[uuid.UUID]struct{}{node.ID: {}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		current := queue[0]
		queue = queue[1:]

		children, err := m.store.FindChildren(ctx, current.id)
		if err != nil {
			return written, fmt.Errorf("load children of category %s: %w", current.id, err)
		}
		for i := range children {
			child := &children[i]
			if _, dup := seen[child.ID]; dup {
				return written, ErrCircularReference.WithMessage("category %s is reachable twice below %s", child.ID, id)
			}
			seen[child.ID] = struct{}{}

			childPathValue, childLevel := childPath(current.path, current.level, child.Slug)
			if err := m.store.UpdatePath(ctx, child.ID, childPathValue, childLevel); err != nil {
				return written, fmt.Errorf("update path of category %s: %w", child.ID, err)
			}
			written++
			queue = append(queue, pending{id: child.ID, path: childPathValue, level: childLevel})
		}
	}

	return written, nil
}

// RebuildResult summarizes a RebuildAll run
type RebuildResult struct {
	Roots        int
	NodesUpdated int
}

// RebuildAll recomputes every root in sort order together with its subtree
func (m *TreeMaintainer) RebuildAll(ctx context.Context) (*RebuildResult, error) {
	roots, err := m.store.FindRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load root categories: %w", err)
	}

	result := &RebuildResult{Roots: len(roots)}
	for _, root := range roots {
		n, err := m.RecomputeSubtree(ctx, root.ID)
		result.NodesUpdated += n
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// GetAncestors returns the chain above category id, root first and immediate
// parent last. A missing category or a root yields an empty slice. Each step
// is one store read.
func (m *TreeMaintainer) GetAncestors(ctx context.Context, id uuid.UUID) ([]Category, error) {
	node, err := m.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return []Category{}, nil
		}
		return nil, err
	}

	chain := make([]Category, 0, node.Level)
	seen := map[uuid.UUID]struct{}{node.ID: {}}
	for next := node.ParentID; next != nil; {
		if _, dup := seen[*next]; dup {
			return nil, ErrCircularReference.WithMessage("parent chain of category %s loops at %s", id, *next)
		}
		seen[*next] = struct{}{}

		parent, err := m.store.FindByID(ctx, *next)
		if err != nil {
			return nil, fmt.Errorf("load ancestor %s of category %s: %w", *next, id, err)
		}
		chain = append(chain, *parent)
		next = parent.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// GetDescendants returns every category below id exactly once, excluding id
// itself. The walk uses an explicit LIFO stack, so the result is depth first;
// callers must not rely on the order.
func (m *TreeMaintainer) GetDescendants(ctx context.Context, id uuid.UUID) ([]Category, error) {
	var result []Category
	_, err := m.walkDescendants(ctx, id, func(c *Category, _ int) {
		result = append(result, *c)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []Category{}
	}
	return result, nil
}

// walkDescendants visits every descendant of id with its depth relative to
// id (children are at depth 1) and returns the deepest depth seen.
func (m *TreeMaintainer) walkDescendants(ctx context.Context, id uuid.UUID, visit func(c *Category, depth int)) (int, error) {
	type frame struct {
		id    uuid.UUID
		depth int
	}
	stack := []frame{{id: id}}
	seen := map[uuid.UUID]struct{}{id: {}}
	height := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return height, err
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := m.store.FindChildren(ctx, top.id)
		if err != nil {
			return height, fmt.Errorf("load children of category %s: %w", top.id, err)
		}
		for i := range children {
			child := &children[i]
			if _, dup := seen[child.ID]; dup {
				continue
			}
			seen[child.ID] = struct{}{}

			depth := top.depth + 1
			if depth > height {
				height = depth
			}
			visit(child, depth)
			stack = append(stack, frame{id: child.ID, depth: depth})
		}
	}
	return height, nil
}

// ValidateMove reports whether id may be placed under newParentID. A nil
// parent is always valid. The move is invalid when newParentID is id itself
// or one of its descendants, since either would close a cycle.
func (m *TreeMaintainer) ValidateMove(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (bool, error) {
	ok, _, err := m.validateMove(ctx, id, newParentID)
	return ok, err
}

// validateMove also returns the height of the subtree below id, which is
// only computed when a parent is given.
func (m *TreeMaintainer) validateMove(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (bool, int, error) {
	if newParentID == nil {
		return true, 0, nil
	}
	if *newParentID == id {
		return false, 0, nil
	}

	target := *newParentID
	found := false
	height, err := m.walkDescendants(ctx, id, func(c *Category, _ int) {
		if c.ID == target {
			found = true
		}
	})
	if err != nil {
		return false, 0, err
	}
	return !found, height, nil
}

// MoveResult describes a completed move
type MoveResult struct {
	Category     *Category
	OldParentID  *uuid.UUID
	NewParentID  *uuid.UUID
	NodesUpdated int
}

// Move reparents category id under newParentID (nil makes it a root) and
// recomputes its subtree. Every check runs before the parent pointer is
// written, so a rejected move leaves the store untouched:
//   - the category and the new parent must exist (shared.ErrNotFound)
//   - the move must not close a cycle (ErrCircularReference)
//   - no sibling under the new parent may share the slug (ErrDuplicateSlug)
//   - the deepest moved node must stay within MaxDepth (ErrMaxDepthExceeded)
func (m *TreeMaintainer) Move(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*MoveResult, error) {
	node, err := m.findCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	var parent *Category
	if newParentID != nil {
		parent, err = m.store.FindByID(ctx, *newParentID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.ErrNotFound.WithMessage("parent category %s not found", *newParentID)
			}
			return nil, fmt.Errorf("load parent category %s: %w", *newParentID, err)
		}
	}

	ok, height, err := m.validateMove(ctx, id, newParentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCircularReference.WithMessage("cannot move category %s under %s: it would become its own ancestor", id, *newParentID)
	}

	if !node.HasParent(newParentID) {
		taken, err := m.store.ExistsSiblingSlug(ctx, newParentID, node.Slug, node.ID)
		if err != nil {
			return nil, fmt.Errorf("check sibling slug %q: %w", node.Slug, err)
		}
		if taken {
			return nil, ErrDuplicateSlug.WithMessage("a category with slug %q already exists under the target parent", node.Slug)
		}
	}

	if parent != nil {
		if err := m.CheckDepth(parent.Level + 1 + height); err != nil {
			return nil, err
		}
	}

	oldParentID := node.ParentID
	if err := m.store.UpdateParent(ctx, node.ID, newParentID); err != nil {
		return nil, fmt.Errorf("update parent of category %s: %w", node.ID, err)
	}

	written, err := m.RecomputeSubtree(ctx, node.ID)
	if err != nil {
		return nil, err
	}

	moved, err := m.store.FindByID(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("reload category %s: %w", node.ID, err)
	}
	return &MoveResult{
		Category:     moved,
		OldParentID:  oldParentID,
		NewParentID:  newParentID,
		NodesUpdated: written,
	}, nil
}

// CheckDepth rejects a node that would sit at level
func (m *TreeMaintainer) CheckDepth(level int) error {
	if m.maxDepth > 0 && level >= m.maxDepth {
		return ErrMaxDepthExceeded.WithMessage("category tree cannot be deeper than %d levels", m.maxDepth)
	}
	return nil
}

// GetByPathPrefix returns active categories at or below prefix ordered by
// level then sort order. Matching is per segment, so "/electronics" does not
// select "/electronics-v2". An empty prefix or "/" selects every active
// category. Results are only as good as the stored paths.
func (m *TreeMaintainer) GetByPathPrefix(ctx context.Context, prefix string) ([]Category, error) {
	categories, err := m.store.FindActiveByPathPrefix(ctx, NormalizePathPrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("find categories by path prefix %q: %w", prefix, err)
	}
	return categories, nil
}

// TreeNode is a category with its active children attached
type TreeNode struct {
	Category Category
	Children []*TreeNode
}

// GetTree assembles the active forest from a single bulk read. Roots and
// siblings keep the store's sort order. maxDepth bounds how many levels
// below the roots are attached: 0 returns roots only, nil or a negative
// value returns the whole forest. Active categories under an inactive
// parent are not reachable and are left out.
func (m *TreeMaintainer) GetTree(ctx context.Context, maxDepth *int) ([]*TreeNode, error) {
	categories, err := m.store.FindAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active categories: %w", err)
	}

	limit := -1
	if maxDepth != nil && *maxDepth >= 0 {
		limit = *maxDepth
	}

	roots := make([]*TreeNode, 0)
	byParent := make(map[uuid.UUID][]*TreeNode)
	for i := range categories {
		n := &TreeNode{Category: categories[i], Children: []*TreeNode{}}
		if categories[i].ParentID == nil {
			roots = append(roots, n)
			continue
		}
		byParent[*categories[i].ParentID] = append(byParent[*categories[i].ParentID], n)
	}

	type frame struct {
		node  *TreeNode
		depth int
	}
	queue := make([]frame, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, frame{node: r})
	}
	attached := make(map[uuid.UUID]struct{}, len(categories))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if limit >= 0 && current.depth >= limit {
			continue
		}
		for _, child := range byParent[current.node.Category.ID] {
			if _, dup := attached[child.Category.ID]; dup {
				continue
			}
			attached[child.Category.ID] = struct{}{}
			current.node.Children = append(current.node.Children, child)
			queue = append(queue, frame{node: child, depth: current.depth + 1})
		}
	}
	return roots, nil
}

func (m *TreeMaintainer) findCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	c, err := m.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNotFound.WithMessage("category %s not found", id)
		}
		return nil, fmt.Errorf("load category %s: %w", id, err)
	}
	return c, nil
}
