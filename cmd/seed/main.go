package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var (
		fixturePath string
		rebuildOnly bool
	)
	flag.StringVar(&fixturePath, "file", "", "Category fixture (toml, yaml or json) with a top-level 'categories' list; defaults to the built-in storefront tree")
	flag.BoolVar(&rebuildOnly, "rebuild-only", false, "Skip seeding and only recompute every stored path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	// Seeding takes the same tree lock as a running server so the two
	// never interleave subtree rewrites.
	backends, err := cache.NewTreeBackendFactory(cfg.Redis, cfg.Catalog, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to create category tree lock", zap.Error(err))
	}
	defer backends.Close()

	opts := []catalogapp.ServiceOption{
		catalogapp.WithTreeLock(backends.Lock),
		catalogapp.WithMaxDepth(cfg.Catalog.MaxDepth),
		catalogapp.WithLogger(log),
		catalogapp.WithTransactionScope(persistence.NewGormCategoryTransactionScope(db.DB)),
	}
	service := catalogapp.NewCategoryService(persistence.NewGormCategoryRepository(db.DB), opts...)

	if !rebuildOnly {
		nodes := defaultTree()
		if fixturePath != "" {
			nodes, err = loadFixture(fixturePath)
			if err != nil {
				log.Fatal("Failed to load fixture", zap.String("file", fixturePath), zap.Error(err))
			}
		}

		result, err := service.Seed(ctx, nodes)
		if err != nil {
			log.Fatal("Seeding failed", zap.Error(err))
		}
		log.Info("Categories seeded",
			zap.Int("created", result.Created),
			zap.Int("roots", result.Roots),
			zap.Int("nodes_updated", result.NodesUpdated),
		)
	} else {
		result, err := service.RebuildAll(ctx)
		if err != nil {
			log.Fatal("Rebuild failed", zap.Error(err))
		}
		log.Info("Category paths rebuilt",
			zap.Int("roots", result.Roots),
			zap.Int("nodes_updated", result.NodesUpdated),
		)
	}

	// A cached tree assembled before seeding is now stale
	if backends.Cache != nil {
		if err := backends.Cache.Invalidate(ctx); err != nil {
			log.Warn("Failed to invalidate category tree cache", zap.Error(err))
		}
	}
}

// loadFixture reads a nested category list from any format viper supports
func loadFixture(path string) ([]catalogapp.SeedNode, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var fixture struct {
		Categories []catalogapp.SeedNode `mapstructure:"categories"`
	}
	if err := v.Unmarshal(&fixture); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if len(fixture.Categories) == 0 {
		return nil, fmt.Errorf("fixture %s has no categories", path)
	}
	return fixture.Categories, nil
}

func defaultTree() []catalogapp.SeedNode {
	return []catalogapp.SeedNode{
		{Name: "Electronics", Slug: "electronics", Children: []catalogapp.SeedNode{
			{Name: "Phones", Slug: "phones", Children: []catalogapp.SeedNode{
				{Name: "Smartphones", Slug: "smartphones"},
				{Name: "Cases & Covers", Slug: "cases-covers", SortOrder: 1},
			}},
			{Name: "Laptops", Slug: "laptops", SortOrder: 1},
			{Name: "Audio", Slug: "audio", SortOrder: 2, Children: []catalogapp.SeedNode{
				{Name: "Headphones", Slug: "headphones"},
				{Name: "Speakers", Slug: "speakers", SortOrder: 1},
			}},
		}},
		{Name: "Clothing", Slug: "clothing", SortOrder: 1, Children: []catalogapp.SeedNode{
			{Name: "Men", Slug: "men"},
			{Name: "Women", Slug: "women", SortOrder: 1},
			{Name: "Kids", Slug: "kids", SortOrder: 2},
		}},
		{Name: "Home & Garden", Slug: "home-garden", SortOrder: 2, Children: []catalogapp.SeedNode{
			{Name: "Kitchen", Slug: "kitchen"},
			{Name: "Furniture", Slug: "furniture", SortOrder: 1},
		}},
		{Name: "Sale", Slug: "sale", SortOrder: 3},
	}
}
