package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
)

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name        string     `json:"name" binding:"required,min=1,max=100"`
	Slug        string     `json:"slug" binding:"omitempty,slug"`
	Description string     `json:"description" binding:"max=2000"`
	ParentID    *uuid.UUID `json:"parent_id"`
	SortOrder   *int       `json:"sort_order" binding:"omitempty,min=0"`
}

// UpdateCategoryRequest represents a request to update the non-structural fields
type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	SortOrder   *int    `json:"sort_order" binding:"omitempty,min=0"`
}

// ChangeSlugRequest represents a request to rename a category's path segment
type ChangeSlugRequest struct {
	Slug string `json:"slug" binding:"required,slug"`
}

// MoveCategoryRequest represents a request to reparent a category.
// A null parent_id moves the category to the root.
type MoveCategoryRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// CategoryListFilter represents filter options for the category list
type CategoryListFilter struct {
	Search    string     `form:"search"`
	IsActive  *bool      `form:"is_active"`
	ParentID  *uuid.UUID `form:"-"`
	RootsOnly bool       `form:"roots_only"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by" binding:"omitempty,oneof=name slug path level sort_order created_at updated_at"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	Path        string     `json:"path"`
	Level       int        `json:"level"`
	SortOrder   int        `json:"sort_order"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int        `json:"version"`
}

// CategoryTreeNode represents a category with its children for menu rendering
type CategoryTreeNode struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Slug      string             `json:"slug"`
	Path      string             `json:"path"`
	Level     int                `json:"level"`
	SortOrder int                `json:"sort_order"`
	Children  []CategoryTreeNode `json:"children"`
}

// MoveCategoryResponse describes a completed move
type MoveCategoryResponse struct {
	Category     CategoryResponse `json:"category"`
	OldParentID  *uuid.UUID       `json:"old_parent_id"`
	NewParentID  *uuid.UUID       `json:"new_parent_id"`
	NodesUpdated int              `json:"nodes_updated"`
}

// ValidateMoveResponse reports whether a move would keep the tree acyclic
type ValidateMoveResponse struct {
	Valid bool `json:"valid"`
}

// RecomputeResponse reports how many categories were rewritten
type RecomputeResponse struct {
	NodesUpdated int `json:"nodes_updated"`
}

// RebuildResponse reports the outcome of a full rebuild
type RebuildResponse struct {
	Roots        int `json:"roots"`
	NodesUpdated int `json:"nodes_updated"`
}

// ToCategoryResponse converts a domain Category to CategoryResponse
func ToCategoryResponse(c *catalog.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		ParentID:    c.ParentID,
		Path:        c.Path,
		Level:       c.Level,
		SortOrder:   c.SortOrder,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Version:     c.Version,
	}
}

// ToCategoryResponses converts a slice of domain categories
func ToCategoryResponses(categories []catalog.Category) []CategoryResponse {
	out := make([]CategoryResponse, len(categories))
	for i := range categories {
		out[i] = ToCategoryResponse(&categories[i])
	}
	return out
}

// ToCategoryTree converts the domain tree into response nodes without
// recursion, mirroring the shape of roots.
func ToCategoryTree(roots []*catalog.TreeNode) []CategoryTreeNode {
	out := make([]CategoryTreeNode, len(roots))

	type frame struct {
		src *catalog.TreeNode
		dst *CategoryTreeNode
	}
	stack := make([]frame, 0, len(roots))
	for i, r := range roots {
		stack = append(stack, frame{src: r, dst: &out[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c := f.src.Category
		*f.dst = CategoryTreeNode{
			ID:        c.ID,
			Name:      c.Name,
			Slug:      c.Slug,
			Path:      c.Path,
			Level:     c.Level,
			SortOrder: c.SortOrder,
			Children:  make([]CategoryTreeNode, len(f.src.Children)),
		}
		for i, child := range f.src.Children {
			stack = append(stack, frame{src: child, dst: &f.dst.Children[i]})
		}
	}
	return out
}
