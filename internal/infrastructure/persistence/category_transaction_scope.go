package persistence

import (
	"context"

	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/domain/catalog"
	"gorm.io/gorm"
)

// GormCategoryTransactionScope runs category tree writes inside one
// database transaction, so a subtree path update lands all-or-nothing.
type GormCategoryTransactionScope struct {
	db *gorm.DB
}

// NewGormCategoryTransactionScope creates a new GormCategoryTransactionScope
func NewGormCategoryTransactionScope(db *gorm.DB) *GormCategoryTransactionScope {
	return &GormCategoryTransactionScope{db: db}
}

// Execute runs fn against a repository bound to a new transaction.
// If fn returns an error the transaction is rolled back.
func (s *GormCategoryTransactionScope) Execute(ctx context.Context, fn func(repo catalog.CategoryRepository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormCategoryRepository(tx))
	})
}

var _ appcatalog.TransactionScope = (*GormCategoryTransactionScope)(nil)
