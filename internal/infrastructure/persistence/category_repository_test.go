package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCategoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.CategoryModel{}))
	return db
}

// seedCategory stores a category under parent with a correct path
func seedCategory(t *testing.T, repo *GormCategoryRepository, slug string, parent *catalog.Category, sortOrder int) *catalog.Category {
	t.Helper()

	var parentID *uuid.UUID
	if parent != nil {
		parentID = &parent.ID
	}
	c, err := catalog.NewCategory(slug, slug, parentID)
	require.NoError(t, err)
	c.SortOrder = sortOrder
	c.Path, c.Level = catalog.ComputePath(parent, slug)
	require.NoError(t, repo.Save(context.Background(), c))
	return c
}

func TestGormCategoryRepository_SaveAndFind(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	root := seedCategory(t, repo, "electronics", nil, 0)
	child := seedCategory(t, repo, "phones", root, 0)

	t.Run("finds saved category", func(t *testing.T) {
		found, err := repo.FindByID(ctx, child.ID)
		require.NoError(t, err)
		assert.Equal(t, "phones", found.Slug)
		assert.Equal(t, "/electronics/phones", found.Path)
		assert.Equal(t, 1, found.Level)
		require.NotNil(t, found.ParentID)
		assert.Equal(t, root.ID, *found.ParentID)
		assert.True(t, found.IsActive)
		assert.Empty(t, found.GetDomainEvents())
	})

	t.Run("missing id returns ErrNotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("save upserts existing row", func(t *testing.T) {
		require.NoError(t, root.Update("Consumer Electronics", "gadgets", 3))
		require.NoError(t, repo.Save(ctx, root))

		found, err := repo.FindByID(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, "Consumer Electronics", found.Name)
		assert.Equal(t, "gadgets", found.Description)
		assert.Equal(t, 3, found.SortOrder)
	})

	t.Run("inactive flag survives insert", func(t *testing.T) {
		c, err := catalog.NewCategory("Archive", "archive", nil)
		require.NoError(t, err)
		require.NoError(t, c.Deactivate())
		require.NoError(t, repo.Save(ctx, c))

		found, err := repo.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.False(t, found.IsActive)
	})
}

func TestGormCategoryRepository_SaveBatch(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	assert.NoError(t, repo.SaveBatch(ctx, nil))

	batch := make([]*catalog.Category, 0, 3)
	for _, slug := range []string{"a", "b", "c"} {
		c, err := catalog.NewCategory(slug, slug, nil)
		require.NoError(t, err)
		batch = append(batch, c)
	}
	require.NoError(t, repo.SaveBatch(ctx, batch))

	roots, err := repo.FindRoots(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 3)
}

func TestGormCategoryRepository_ChildrenAndRoots(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	books := seedCategory(t, repo, "books", nil, 2)
	toys := seedCategory(t, repo, "toys", nil, 1)
	seedCategory(t, repo, "fiction", books, 1)
	seedCategory(t, repo, "comics", books, 0)

	roots, err := repo.FindRoots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, toys.ID, roots[0].ID)
	assert.Equal(t, books.ID, roots[1].ID)

	children, err := repo.FindChildren(ctx, books.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "comics", children[0].Slug)
	assert.Equal(t, "fiction", children[1].Slug)

	has, err := repo.HasChildren(ctx, books.ID)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasChildren(ctx, toys.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGormCategoryRepository_FindActiveByPathPrefix(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	electronics := seedCategory(t, repo, "electronics", nil, 0)
	phones := seedCategory(t, repo, "phones", electronics, 1)
	seedCategory(t, repo, "laptops", electronics, 0)
	seedCategory(t, repo, "smart", phones, 0)
	seedCategory(t, repo, "electronics-v2", nil, 1)
	sale := seedCategory(t, repo, "sale-50", nil, 2)
	seedCategory(t, repo, "clearance", sale, 0)

	inactive := seedCategory(t, repo, "refurbished", electronics, 2)
	require.NoError(t, inactive.Deactivate())
	require.NoError(t, repo.Save(ctx, inactive))

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"subtree ordered by level then sort order", "/electronics", []string{"electronics", "laptops", "phones", "smart"}},
		{"trailing separator is ignored", "/electronics/", []string{"electronics", "laptops", "phones", "smart"}},
		{"missing leading separator is added", "electronics/phones", []string{"phones", "smart"}},
		{"segment boundary is respected", "/elec", []string{}},
		{"percent matches literally", "/sale%", []string{}},
		{"underscore matches literally", "/sale_50", []string{}},
		{"hyphenated segment", "/sale-50", []string{"sale-50", "clearance"}},
		{"unknown prefix", "/garden", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindActiveByPathPrefix(ctx, tt.prefix)
			require.NoError(t, err)
			slugs := make([]string, 0, len(got))
			for _, c := range got {
				slugs = append(slugs, c.Slug)
			}
			assert.Equal(t, tt.want, slugs)
		})
	}

	t.Run("empty prefix returns every active category", func(t *testing.T) {
		all, err := repo.FindAllActive(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 7)
		assert.Equal(t, 0, all[0].Level)
	})
}

func TestGormCategoryRepository_ExistsSiblingSlug(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	books := seedCategory(t, repo, "books", nil, 0)
	fiction := seedCategory(t, repo, "fiction", books, 0)

	tests := []struct {
		name     string
		parentID *uuid.UUID
		slug     string
		exclude  uuid.UUID
		want     bool
	}{
		{"root sibling", nil, "books", uuid.Nil, true},
		{"root sibling excluded", nil, "books", books.ID, false},
		{"child sibling", &books.ID, "fiction", uuid.Nil, true},
		{"child slug is not a root sibling", nil, "fiction", uuid.Nil, false},
		{"excluding self", &books.ID, "fiction", fiction.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ExistsSiblingSlug(ctx, tt.parentID, tt.slug, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGormCategoryRepository_UpdatePathAndParent(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	books := seedCategory(t, repo, "books", nil, 0)
	toys := seedCategory(t, repo, "toys", nil, 0)
	fiction := seedCategory(t, repo, "fiction", books, 0)

	require.NoError(t, repo.UpdateParent(ctx, fiction.ID, &toys.ID))
	require.NoError(t, repo.UpdatePath(ctx, fiction.ID, "/toys/fiction", 1))

	found, err := repo.FindByID(ctx, fiction.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ParentID)
	assert.Equal(t, toys.ID, *found.ParentID)
	assert.Equal(t, "/toys/fiction", found.Path)
	assert.Equal(t, fiction.Version+1, found.Version)

	require.NoError(t, repo.UpdateParent(ctx, fiction.ID, nil))
	found, err = repo.FindByID(ctx, fiction.ID)
	require.NoError(t, err)
	assert.Nil(t, found.ParentID)

	assert.ErrorIs(t, repo.UpdatePath(ctx, uuid.New(), "/x", 0), shared.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateParent(ctx, uuid.New(), nil), shared.ErrNotFound)
}

func TestGormCategoryRepository_UpdateAttributesKeepsPosition(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	books := seedCategory(t, repo, "books", nil, 0)
	toys := seedCategory(t, repo, "toys", nil, 1)
	fiction := seedCategory(t, repo, "fiction", books, 0)

	stale, err := repo.FindByID(ctx, fiction.ID)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateParent(ctx, fiction.ID, &toys.ID))
	require.NoError(t, repo.UpdatePath(ctx, fiction.ID, "/toys/fiction", 1))

	require.NoError(t, stale.Update("Fiction & Poetry", "novels", 4))
	require.NoError(t, stale.Deactivate())
	require.NoError(t, repo.UpdateAttributes(ctx, stale))

	found, err := repo.FindByID(ctx, fiction.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ParentID)
	assert.Equal(t, toys.ID, *found.ParentID)
	assert.Equal(t, "/toys/fiction", found.Path)
	assert.Equal(t, 1, found.Level)
	assert.Equal(t, "Fiction & Poetry", found.Name)
	assert.Equal(t, "novels", found.Description)
	assert.Equal(t, 4, found.SortOrder)
	assert.False(t, found.IsActive)
	assert.Equal(t, fiction.Version+2, found.Version)

	missing, err := catalog.NewCategory("ghost", "ghost", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.UpdateAttributes(ctx, missing), shared.ErrNotFound)
}

func TestGormCategoryRepository_Delete(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	c := seedCategory(t, repo, "books", nil, 0)
	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err := repo.FindByID(ctx, c.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), shared.ErrNotFound)
}

func TestGormCategoryRepository_FindAllAndCount(t *testing.T) {
	repo := NewGormCategoryRepository(setupCategoryTestDB(t))
	ctx := context.Background()

	books := seedCategory(t, repo, "books", nil, 1)
	seedCategory(t, repo, "toys", nil, 0)
	seedCategory(t, repo, "board-games", books, 0)
	cookbooks := seedCategory(t, repo, "cookbooks", books, 1)
	require.NoError(t, cookbooks.Deactivate())
	require.NoError(t, repo.Save(ctx, cookbooks))

	t.Run("search matches name or slug case-insensitively", func(t *testing.T) {
		filter := shared.Filter{Search: "BOOK", Filters: map[string]any{}}
		got, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, got, 2)

		count, err := repo.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("roots only", func(t *testing.T) {
		filter := shared.Filter{Filters: map[string]any{"parent_id": nil}}
		got, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "toys", got[0].Slug)
	})

	t.Run("children of parent filtered by status", func(t *testing.T) {
		filter := shared.Filter{Filters: map[string]any{"parent_id": books.ID, "is_active": true}}
		got, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "board-games", got[0].Slug)
	})

	t.Run("pagination with order", func(t *testing.T) {
		filter := shared.Filter{Page: 2, PageSize: 2, OrderBy: "slug", OrderDir: "desc"}
		got, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "books", got[0].Slug)
		assert.Equal(t, "board-games", got[1].Slug)

		count, err := repo.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("unknown sort field falls back", func(t *testing.T) {
		got, err := repo.FindAll(ctx, shared.Filter{OrderBy: "name; DROP TABLE categories"})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})
}

func TestGormCategoryTransactionScope(t *testing.T) {
	db := setupCategoryTestDB(t)
	repo := NewGormCategoryRepository(db)
	scope := NewGormCategoryTransactionScope(db)
	ctx := context.Background()

	books := seedCategory(t, repo, "books", nil, 0)

	t.Run("commits on success", func(t *testing.T) {
		err := scope.Execute(ctx, func(tx catalog.CategoryRepository) error {
			return tx.UpdatePath(ctx, books.ID, "/library", 0)
		})
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, books.ID)
		require.NoError(t, err)
		assert.Equal(t, "/library", found.Path)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := scope.Execute(ctx, func(tx catalog.CategoryRepository) error {
			if err := tx.UpdatePath(ctx, books.ID, "/rolled-back", 0); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, err := repo.FindByID(ctx, books.ID)
		require.NoError(t, err)
		assert.Equal(t, "/library", found.Path)
	})
}

// TestTreeMaintainer_OnGorm runs the tree maintainer against the real
// repository to check the path equations hold after writes land in SQL.
func TestTreeMaintainer_OnGorm(t *testing.T) {
	db := setupCategoryTestDB(t)
	repo := NewGormCategoryRepository(db)
	tm := catalog.NewTreeMaintainer(repo)
	ctx := context.Background()

	electronics := seedCategory(t, repo, "electronics", nil, 0)
	phones := seedCategory(t, repo, "phones", electronics, 0)
	smart := seedCategory(t, repo, "smart", phones, 0)
	home := seedCategory(t, repo, "home", nil, 1)

	t.Run("move rewrites the subtree", func(t *testing.T) {
		result, err := tm.Move(ctx, phones.ID, &home.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, result.NodesUpdated)

		got, err := repo.FindByID(ctx, smart.ID)
		require.NoError(t, err)
		assert.Equal(t, "/home/phones/smart", got.Path)
		assert.Equal(t, 2, got.Level)

		ancestors, err := tm.GetAncestors(ctx, smart.ID)
		require.NoError(t, err)
		require.Len(t, ancestors, 2)
		assert.Equal(t, home.ID, ancestors[0].ID)
		assert.Equal(t, phones.ID, ancestors[1].ID)
	})

	t.Run("cycle is rejected without writes", func(t *testing.T) {
		_, err := tm.Move(ctx, home.ID, &smart.ID)
		assert.ErrorIs(t, err, catalog.ErrCircularReference)

		got, err := repo.FindByID(ctx, home.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ParentID)
		assert.Equal(t, "/home", got.Path)
	})

	t.Run("rebuild repairs corrupted paths", func(t *testing.T) {
		require.NoError(t, repo.UpdatePath(ctx, smart.ID, "/stale", 7))

		result, err := tm.RebuildAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Roots)
		assert.Equal(t, 4, result.NodesUpdated)

		got, err := repo.FindByID(ctx, smart.ID)
		require.NoError(t, err)
		assert.Equal(t, "/home/phones/smart", got.Path)
		assert.Equal(t, 2, got.Level)
	})

	t.Run("tree from one bulk read", func(t *testing.T) {
		roots, err := tm.GetTree(ctx, nil)
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, electronics.ID, roots[0].Category.ID)
		assert.Empty(t, roots[0].Children)
		require.Len(t, roots[1].Children, 1)
		assert.Len(t, roots[1].Children[0].Children, 1)
	})
}
