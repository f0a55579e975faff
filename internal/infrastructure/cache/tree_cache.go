package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"go.uber.org/zap"
)

const (
	treeKeyPrefix  = "{catalog:tree}:"
	defaultTreeTTL = 10 * time.Minute
)

// treeGenerationKey holds the generation counter. It has no TTL so the
// counter never goes backwards.
const treeGenerationKey = treeKeyPrefix + "generation"

// treeCacheKey names the entry for a depth limit within a generation;
// negative depths share "all"
func treeCacheKey(generation int64, depth int) string {
	d := "all"
	if depth >= 0 {
		d = strconv.Itoa(depth)
	}
	return treeKeyPrefix + strconv.FormatInt(generation, 10) + ":" + d
}

// storeTreeScript writes the entry only while the generation it was loaded
// under is still current. A missing counter reads as generation 0.
var storeTreeScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisTreeCache stores assembled trees as JSON with a TTL. Entries are
// keyed by generation; Invalidate bumps the counter and older entries age
// out through their TTL.
type RedisTreeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisTreeCache creates a RedisTreeCache on an existing client. The
// caller keeps ownership of the client.
func NewRedisTreeCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisTreeCache {
	if ttl <= 0 {
		ttl = defaultTreeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTreeCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisTreeCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, treeGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read tree cache generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached tree for depth in the current generation
func (c *RedisTreeCache) Get(ctx context.Context, depth int) (appcatalog.TreeLookup, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return appcatalog.TreeLookup{}, err
	}
	lookup := appcatalog.TreeLookup{Generation: gen}
	key := treeCacheKey(gen, depth)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return lookup, nil
	}
	if err != nil {
		return appcatalog.TreeLookup{}, fmt.Errorf("failed to read tree cache: %w", err)
	}

	var tree []appcatalog.CategoryTreeNode
	if err := json.Unmarshal(data, &tree); err != nil {
		c.logger.Warn("dropping corrupted tree cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return lookup, nil
	}
	lookup.Tree, lookup.Hit = tree, true
	return lookup, nil
}

// Set stores the tree for depth if generation is still current
func (c *RedisTreeCache) Set(ctx context.Context, depth int, generation int64, tree []appcatalog.CategoryTreeNode) (bool, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return false, fmt.Errorf("failed to marshal category tree: %w", err)
	}
	keys := []string{treeGenerationKey, treeCacheKey(generation, depth)}
	n, err := storeTreeScript.Run(ctx, c.client, keys, generation, data, c.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to write tree cache: %w", err)
	}
	return n == 1, nil
}

// Invalidate starts a new generation, hiding every cached depth
func (c *RedisTreeCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, treeGenerationKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate tree cache: %w", err)
	}
	c.logger.Debug("tree cache invalidated", zap.Int64("generation", gen))
	return nil
}

type treeEntry struct {
	tree      []appcatalog.CategoryTreeNode
	expiresAt time.Time
}

// InMemoryTreeCache keeps trees in process memory. Expired entries are
// dropped lazily on read.
type InMemoryTreeCache struct {
	mu         sync.RWMutex
	entries    map[int]treeEntry
	generation int64
	ttl        time.Duration
	now        func() time.Time
}

// NewInMemoryTreeCache creates an InMemoryTreeCache
func NewInMemoryTreeCache(ttl time.Duration) *InMemoryTreeCache {
	if ttl <= 0 {
		ttl = defaultTreeTTL
	}
	return &InMemoryTreeCache{entries: make(map[int]treeEntry), ttl: ttl, now: time.Now}
}

func normalizeDepth(depth int) int {
	return max(depth, -1)
}

// Get returns the cached tree for depth
func (c *InMemoryTreeCache) Get(_ context.Context, depth int) (appcatalog.TreeLookup, error) {
	depth = normalizeDepth(depth)

	c.mu.RLock()
	entry, ok := c.entries[depth]
	lookup := appcatalog.TreeLookup{Generation: c.generation}
	c.mu.RUnlock()
	if !ok {
		return lookup, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[depth]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, depth)
		}
		c.mu.Unlock()
		return lookup, nil
	}
	lookup.Tree, lookup.Hit = entry.tree, true
	return lookup, nil
}

// Set stores the tree for depth if generation is still current
func (c *InMemoryTreeCache) Set(_ context.Context, depth int, generation int64, tree []appcatalog.CategoryTreeNode) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false, nil
	}
	c.entries[normalizeDepth(depth)] = treeEntry{tree: tree, expiresAt: c.now().Add(c.ttl)}
	return true, nil
}

// Invalidate drops every cached tree and starts a new generation
func (c *InMemoryTreeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	clear(c.entries)
	return nil
}

var (
	_ appcatalog.TreeCache = (*RedisTreeCache)(nil)
	_ appcatalog.TreeCache = (*InMemoryTreeCache)(nil)
)
