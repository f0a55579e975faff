package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SeedNode describes a category fixture and its children
type SeedNode struct {
	Name        string     `json:"name" mapstructure:"name"`
	Slug        string     `json:"slug" mapstructure:"slug"`
	Description string     `json:"description" mapstructure:"description"`
	SortOrder   int        `json:"sort_order" mapstructure:"sort_order"`
	Children    []SeedNode `json:"children" mapstructure:"children"`
}

// SeedResult reports what Seed wrote
type SeedResult struct {
	Created      int `json:"created"`
	Roots        int `json:"roots"`
	NodesUpdated int `json:"nodes_updated"`
}

// Seed bulk-creates a nested category fixture and then rebuilds every path.
// Seeding is all or nothing when the transaction scope is transactional.
func (s *CategoryService) Seed(ctx context.Context, nodes []SeedNode) (*SeedResult, error) {
	result := &SeedResult{}
	var created []*catalog.Category

	err := s.writeTree(ctx, func(repo catalog.CategoryRepository, tm *catalog.TreeMaintainer) error {
		var err error
		created, err = s.expandSeed(ctx, repo, tm, nodes)
		if err != nil {
			return err
		}
		if err := repo.SaveBatch(ctx, created); err != nil {
			return fmt.Errorf("save seeded categories: %w", err)
		}

		rebuilt, err := tm.RebuildAll(ctx)
		if err != nil {
			return err
		}
		s.metrics.RecordPathWrites(ctx, "seed", rebuilt.NodesUpdated)
		result.Roots = rebuilt.Roots
		result.NodesUpdated = rebuilt.NodesUpdated
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Created = len(created)

	events := make([]shared.DomainEvent, 0, len(created))
	for _, c := range created {
		events = append(events, c.GetDomainEvents()...)
		c.ClearDomainEvents()
	}
	s.publish(ctx, events...)

	s.logger.Info("category tree seeded",
		zap.Int("created", result.Created),
		zap.Int("roots", result.Roots),
	)
	return result, nil
}

// expandSeed turns the fixture into categories with an explicit stack.
// Sibling slugs must be unique within the fixture and, for roots, against
// the categories already stored.
func (s *CategoryService) expandSeed(ctx context.Context, repo catalog.CategoryRepository, tm *catalog.TreeMaintainer, nodes []SeedNode) ([]*catalog.Category, error) {
	type frame struct {
		node     SeedNode
		parentID *uuid.UUID
		level    int
	}

	stack := make([]frame, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: nodes[i]})
	}

	var created []*catalog.Category
	siblingSlugs := make(map[string]struct{})

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := tm.CheckDepth(f.level); err != nil {
			return nil, err
		}
		c, err := catalog.NewCategory(f.node.Name, f.node.Slug, f.parentID)
		if err != nil {
			return nil, fmt.Errorf("seed category %q: %w", f.node.Name, err)
		}
		c.Description = f.node.Description
		c.SortOrder = f.node.SortOrder

		parentKey := "root"
		if f.parentID != nil {
			parentKey = f.parentID.String()
		}
		key := parentKey + "/" + c.Slug
		if _, dup := siblingSlugs[key]; dup {
			return nil, catalog.ErrDuplicateSlug.WithMessage("seed fixture repeats slug %q under the same parent", c.Slug)
		}
		siblingSlugs[key] = struct{}{}

		if f.parentID == nil {
			if err := s.ensureSlugFree(ctx, repo, nil, c.Slug, c.ID); err != nil {
				return nil, err
			}
		}
		created = append(created, c)

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], parentID: &c.ID, level: f.level + 1})
		}
	}
	return created, nil
}
