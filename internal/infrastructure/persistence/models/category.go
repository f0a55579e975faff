package models

import (
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
)

// CategoryModel is the persistence model for the Category domain entity.
// Path is indexed with text_pattern_ops in the migration so prefix LIKE
// queries can use it.
type CategoryModel struct {
	AggregateModel
	Name        string     `gorm:"type:varchar(200);not null"`
	Slug        string     `gorm:"type:varchar(100);not null"`
	Description string     `gorm:"type:text"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index"`
	Path        string     `gorm:"type:varchar(1000);not null;index"`
	Level       int        `gorm:"not null;default:0"`
	SortOrder   int        `gorm:"not null;default:0"`
	IsActive    bool       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Slug:              m.Slug,
		Description:       m.Description,
		ParentID:          m.ParentID,
		Path:              m.Path,
		Level:             m.Level,
		SortOrder:         m.SortOrder,
		IsActive:          m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Category entity.
func (m *CategoryModel) FromDomain(c *catalog.Category) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.Slug = c.Slug
	m.Description = c.Description
	m.ParentID = c.ParentID
	m.Path = c.Path
	m.Level = c.Level
	m.SortOrder = c.SortOrder
	m.IsActive = c.IsActive
}

// CategoryModelFromDomain creates a new persistence model from a domain Category entity.
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	m := &CategoryModel{}
	m.FromDomain(c)
	return m
}

// CategoryModelsToDomain converts a slice of models into domain values
func CategoryModelsToDomain(ms []CategoryModel) []catalog.Category {
	out := make([]catalog.Category, len(ms))
	for i := range ms {
		out[i] = *ms[i].ToDomain()
	}
	return out
}
