package catalog

import (
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// AggregateTypeCategory names the category aggregate in events
const AggregateTypeCategory = "Category"

// Event type constants
const (
	EventTypeCategoryCreated       = "CategoryCreated"
	EventTypeCategoryUpdated       = "CategoryUpdated"
	EventTypeCategorySlugChanged   = "CategorySlugChanged"
	EventTypeCategoryMoved         = "CategoryMoved"
	EventTypeCategoryStatusChanged = "CategoryStatusChanged"
	EventTypeCategoryDeleted       = "CategoryDeleted"
	EventTypeCategoryTreeRebuilt   = "CategoryTreeRebuilt"
)

// TreeShapeEventTypes lists the events after which a cached tree is stale
var TreeShapeEventTypes = []string{
	EventTypeCategoryCreated,
	EventTypeCategoryUpdated,
	EventTypeCategorySlugChanged,
	EventTypeCategoryMoved,
	EventTypeCategoryStatusChanged,
	EventTypeCategoryDeleted,
	EventTypeCategoryTreeRebuilt,
}

// CategoryCreatedEvent is published when a new category is created
type CategoryCreatedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID  `json:"category_id"`
	Slug       string     `json:"slug"`
	Name       string     `json:"name"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
}

func NewCategoryCreatedEvent(c *Category) *CategoryCreatedEvent {
	return &CategoryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryCreated, AggregateTypeCategory, c.ID),
		CategoryID:      c.ID,
		Slug:            c.Slug,
		Name:            c.Name,
		ParentID:        c.ParentID,
	}
}

// CategoryUpdatedEvent is published when name, description or sort order change
type CategoryUpdatedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	SortOrder  int       `json:"sort_order"`
}

func NewCategoryUpdatedEvent(c *Category) *CategoryUpdatedEvent {
	return &CategoryUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryUpdated, AggregateTypeCategory, c.ID),
		CategoryID:      c.ID,
		Name:            c.Name,
		SortOrder:       c.SortOrder,
	}
}

// CategorySlugChangedEvent is published when a category's path segment changes
type CategorySlugChangedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID `json:"category_id"`
	OldSlug    string    `json:"old_slug"`
	NewSlug    string    `json:"new_slug"`
}

func NewCategorySlugChangedEvent(c *Category, oldSlug string) *CategorySlugChangedEvent {
	return &CategorySlugChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategorySlugChanged, AggregateTypeCategory, c.ID),
		CategoryID:      c.ID,
		OldSlug:         oldSlug,
		NewSlug:         c.Slug,
	}
}

// CategoryMovedEvent is published after a successful reparent
type CategoryMovedEvent struct {
	shared.BaseDomainEvent
	CategoryID   uuid.UUID  `json:"category_id"`
	OldParentID  *uuid.UUID `json:"old_parent_id,omitempty"`
	NewParentID  *uuid.UUID `json:"new_parent_id,omitempty"`
	NodesUpdated int        `json:"nodes_updated"`
}

func NewCategoryMovedEvent(categoryID uuid.UUID, oldParentID, newParentID *uuid.UUID, nodesUpdated int) *CategoryMovedEvent {
	return &CategoryMovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryMoved, AggregateTypeCategory, categoryID),
		CategoryID:      categoryID,
		OldParentID:     oldParentID,
		NewParentID:     newParentID,
		NodesUpdated:    nodesUpdated,
	}
}

// CategoryStatusChangedEvent is published when a category is activated or deactivated
type CategoryStatusChangedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID `json:"category_id"`
	IsActive   bool      `json:"is_active"`
}

func NewCategoryStatusChangedEvent(c *Category) *CategoryStatusChangedEvent {
	return &CategoryStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryStatusChanged, AggregateTypeCategory, c.ID),
		CategoryID:      c.ID,
		IsActive:        c.IsActive,
	}
}

// CategoryDeletedEvent is published when a category is deleted
type CategoryDeletedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID  `json:"category_id"`
	Path       string     `json:"path"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
}

func NewCategoryDeletedEvent(c *Category) *CategoryDeletedEvent {
	return &CategoryDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryDeleted, AggregateTypeCategory, c.ID),
		CategoryID:      c.ID,
		Path:            c.Path,
		ParentID:        c.ParentID,
	}
}

// CategoryTreeRebuiltEvent is published after every path in the forest was recomputed
type CategoryTreeRebuiltEvent struct {
	shared.BaseDomainEvent
	Roots        int `json:"roots"`
	NodesUpdated int `json:"nodes_updated"`
}

func NewCategoryTreeRebuiltEvent(roots, nodesUpdated int) *CategoryTreeRebuiltEvent {
	return &CategoryTreeRebuiltEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryTreeRebuilt, AggregateTypeCategory, uuid.Nil),
		Roots:           roots,
		NodesUpdated:    nodesUpdated,
	}
}
