package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
)

// CategoryHandler handles the category tree API
type CategoryHandler struct {
	BaseHandler
	categoryService *catalogapp.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService *catalogapp.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
	}
}

// RegisterRoutes mounts the category routes under rg
func (h *CategoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	categories := rg.Group("/catalog/categories")

	categories.POST("", h.Create)
	categories.GET("", h.List)
	categories.GET("/tree", h.GetTree)
	categories.GET("/by-path", h.GetByPathPrefix)
	categories.POST("/rebuild", h.RebuildAll)

	categories.GET("/:id", h.GetByID)
	categories.PUT("/:id", h.Update)
	categories.DELETE("/:id", h.Delete)
	categories.PUT("/:id/slug", h.ChangeSlug)
	categories.POST("/:id/move", h.Move)
	categories.POST("/:id/move/validate", h.ValidateMove)
	categories.POST("/:id/recompute", h.RecomputePath)
	categories.POST("/:id/activate", h.Activate)
	categories.POST("/:id/deactivate", h.Deactivate)
	categories.GET("/:id/ancestors", h.GetAncestors)
	categories.GET("/:id/descendants", h.GetDescendants)
	categories.GET("/:id/children", h.GetChildren)
}

// Create handles POST /catalog/categories
func (h *CategoryHandler) Create(c *gin.Context) {
	var req catalogapp.CreateCategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, category)
}

// GetByID handles GET /catalog/categories/:id
func (h *CategoryHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	category, err := h.categoryService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// List handles GET /catalog/categories with search, filters and paging
func (h *CategoryHandler) List(c *gin.Context) {
	var filter catalogapp.CategoryListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if raw := c.Query("parent_id"); raw != "" {
		parentID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid parent ID format")
			return
		}
		filter.ParentID = &parentID
	}

	categories, total, err := h.categoryService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, categories, total, page, pageSize)
}

// Update handles PUT /catalog/categories/:id
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req catalogapp.UpdateCategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// ChangeSlug handles PUT /catalog/categories/:id/slug
func (h *CategoryHandler) ChangeSlug(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req catalogapp.ChangeSlugRequest
	if !h.bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.ChangeSlug(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// Move handles POST /catalog/categories/:id/move. A null or absent
// parent_id moves the category to the root.
func (h *CategoryHandler) Move(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req catalogapp.MoveCategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.categoryService.Move(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ValidateMove handles POST /catalog/categories/:id/move/validate
func (h *CategoryHandler) ValidateMove(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req catalogapp.MoveCategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.categoryService.ValidateMove(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RecomputePath handles POST /catalog/categories/:id/recompute
func (h *CategoryHandler) RecomputePath(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	result, err := h.categoryService.RecomputePath(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RebuildAll handles POST /catalog/categories/rebuild
func (h *CategoryHandler) RebuildAll(c *gin.Context) {
	result, err := h.categoryService.RebuildAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Activate handles POST /catalog/categories/:id/activate
func (h *CategoryHandler) Activate(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	category, err := h.categoryService.Activate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// Deactivate handles POST /catalog/categories/:id/deactivate
func (h *CategoryHandler) Deactivate(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	category, err := h.categoryService.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// Delete handles DELETE /catalog/categories/:id
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.categoryService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GetAncestors handles GET /catalog/categories/:id/ancestors
func (h *CategoryHandler) GetAncestors(c *gin.Context) {
	h.listRelated(c, h.categoryService.GetAncestors)
}

// GetDescendants handles GET /catalog/categories/:id/descendants
func (h *CategoryHandler) GetDescendants(c *gin.Context) {
	h.listRelated(c, h.categoryService.GetDescendants)
}

// GetChildren handles GET /catalog/categories/:id/children
func (h *CategoryHandler) GetChildren(c *gin.Context) {
	h.listRelated(c, h.categoryService.GetChildren)
}

func (h *CategoryHandler) listRelated(c *gin.Context, query func(ctx context.Context, id uuid.UUID) ([]catalogapp.CategoryResponse, error)) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	categories, err := query(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, categories)
}

// GetByPathPrefix handles GET /catalog/categories/by-path?prefix=
func (h *CategoryHandler) GetByPathPrefix(c *gin.Context) {
	categories, err := h.categoryService.GetByPathPrefix(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, categories)
}

// GetTree handles GET /catalog/categories/tree?max_depth=
func (h *CategoryHandler) GetTree(c *gin.Context) {
	var maxDepth *int
	if raw := c.Query("max_depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 0 {
			h.BadRequest(c, "max_depth must be a non-negative integer")
			return
		}
		maxDepth = &depth
	}

	tree, err := h.categoryService.GetTree(c.Request.Context(), maxDepth)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tree)
}
