package catalog

import "github.com/storefront/backend/internal/domain/shared"

// Category tree errors
var (
	ErrCircularReference = shared.NewDomainError("CIRCULAR_REFERENCE", "Move would make the category an ancestor of itself")
	ErrMaxDepthExceeded  = shared.NewDomainError("MAX_DEPTH_EXCEEDED", "Category tree depth limit exceeded")
	ErrDuplicateSlug     = shared.NewDomainError("ALREADY_EXISTS", "A sibling category already uses this slug")
	ErrHasChildren       = shared.NewDomainError("HAS_CHILDREN", "Category still has child categories")
	ErrInvalidSlug       = shared.NewDomainError("INVALID_SLUG", "Invalid category slug")
	ErrInvalidName       = shared.NewDomainError("INVALID_NAME", "Invalid category name")
	ErrAlreadyActive     = shared.NewDomainError("ALREADY_ACTIVE", "Category is already active")
	ErrAlreadyInactive   = shared.NewDomainError("ALREADY_INACTIVE", "Category is already inactive")
	ErrTreeLocked        = shared.NewDomainError("TREE_LOCKED", "Category tree is being modified, try again later")
)
