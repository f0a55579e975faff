package catalog

import (
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// PathSeparator joins slugs into a materialized path
const PathSeparator = "/"

// Category is a node of the storefront category forest.
//
// Path and Level are denormalized from the ParentID chain and are owned by
// TreeMaintainer. ParentID is exported for persistence mapping only; callers
// change it through TreeMaintainer.Move.
type Category struct {
	shared.BaseAggregateRoot
	Name        string
	Slug        string
	Description string
	ParentID    *uuid.UUID
	Path        string
	Level       int
	SortOrder   int
	IsActive    bool
}

// NewCategory creates an active category under parentID (nil for a root).
// Path and Level hold a provisional value until the tree maintainer
// recomputes them against the stored parent.
func NewCategory(name, slug string, parentID *uuid.UUID) (*Category, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if slug == "" {
		slug = Slugify(name)
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}

	c := &Category{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(name),
		Slug:              slug,
		ParentID:          parentID,
		IsActive:          true,
	}
	c.Path, c.Level = ComputePath(nil, slug)

	c.AddDomainEvent(NewCategoryCreatedEvent(c))
	return c, nil
}

// Update changes the fields that have no effect on the tree shape
func (c *Category) Update(name, description string, sortOrder int) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	c.Name = strings.TrimSpace(name)
	c.Description = description
	c.SortOrder = sortOrder
	c.IncrementVersion()

	c.AddDomainEvent(NewCategoryUpdatedEvent(c))
	return nil
}

// ChangeSlug renames the path segment. The caller must recompute the subtree
// afterwards; until then Path is stale for this node and its descendants.
func (c *Category) ChangeSlug(slug string) error {
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	if slug == c.Slug {
		return nil
	}
	old := c.Slug
	c.Slug = slug
	c.IncrementVersion()

	c.AddDomainEvent(NewCategorySlugChangedEvent(c, old))
	return nil
}

// Activate makes the category visible to read queries
func (c *Category) Activate() error {
	if c.IsActive {
		return ErrAlreadyActive
	}
	c.IsActive = true
	c.IncrementVersion()

	c.AddDomainEvent(NewCategoryStatusChangedEvent(c))
	return nil
}

// Deactivate hides the category from read queries. Paths are unaffected.
func (c *Category) Deactivate() error {
	if !c.IsActive {
		return ErrAlreadyInactive
	}
	c.IsActive = false
	c.IncrementVersion()

	c.AddDomainEvent(NewCategoryStatusChangedEvent(c))
	return nil
}

// IsRoot returns true if the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// HasParent reports whether the category's parent is id
func (c *Category) HasParent(id *uuid.UUID) bool {
	switch {
	case c.ParentID == nil && id == nil:
		return true
	case c.ParentID == nil || id == nil:
		return false
	default:
		return *c.ParentID == *id
	}
}

// ComputePath derives path and level for a node with the given slug placed
// under parent (nil for a root).
func ComputePath(parent *Category, slug string) (string, int) {
	if parent == nil {
		return PathSeparator + slug, 0
	}
	return childPath(parent.Path, parent.Level, slug)
}

func childPath(parentPath string, parentLevel int, slug string) (string, int) {
	return parentPath + PathSeparator + slug, parentLevel + 1
}

// NormalizePathPrefix cleans a user supplied path prefix. The result has a
// leading separator and no trailing one; an empty result selects every path.
func NormalizePathPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, PathSeparator)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, PathSeparator) {
		prefix = PathSeparator + prefix
	}
	return prefix
}

// PathHasPrefix reports whether path lies at or below a normalized prefix,
// comparing whole segments: "/electronics" covers "/electronics/laptops"
// but not "/electronics-v2".
func PathHasPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+PathSeparator)
}
