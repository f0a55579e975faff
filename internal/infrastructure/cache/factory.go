package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// TreeBackends is the lock and cache the category service runs with.
// Cache is nil when tree caching is disabled. Client is nil when the
// in-memory backends are in use.
type TreeBackends struct {
	Lock   appcatalog.TreeLock
	Cache  appcatalog.TreeCache
	Client *redis.Client
}

// Close releases the Redis client, if any
func (b *TreeBackends) Close() error {
	if b.Client == nil {
		return nil
	}
	return b.Client.Close()
}

// Distributed reports whether the backends are shared across processes
func (b *TreeBackends) Distributed() bool {
	return b.Client != nil
}

// TreeBackendFactory creates tree lock and cache backends based on configuration
type TreeBackendFactory struct {
	redisConfig           config.RedisConfig
	catalogConfig         config.CatalogConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// TreeBackendFactoryOption is a functional option for configuring the factory
type TreeBackendFactoryOption func(*TreeBackendFactory)

// WithLogger sets the logger for the factory and the backends it creates
func WithLogger(logger *zap.Logger) TreeBackendFactoryOption {
	return func(f *TreeBackendFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory backends
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) TreeBackendFactoryOption {
	return func(f *TreeBackendFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewTreeBackendFactory creates a new factory
func NewTreeBackendFactory(redisCfg config.RedisConfig, catalogCfg config.CatalogConfig, opts ...TreeBackendFactoryOption) *TreeBackendFactory {
	f := &TreeBackendFactory{
		redisConfig:           redisCfg,
		catalogConfig:         catalogCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *TreeBackendFactory) lockOptions() []LockOption {
	return []LockOption{
		WithLockTTL(f.catalogConfig.LockTTL),
		WithLockWait(f.catalogConfig.LockWait),
		WithLockLogger(f.logger.Named("tree_lock")),
	}
}

// CreateRedisBackends builds Redis-backed lock and cache on client
func (f *TreeBackendFactory) CreateRedisBackends(client *redis.Client) *TreeBackends {
	b := &TreeBackends{
		Lock:   NewRedisTreeLock(client, f.lockOptions()...),
		Client: client,
	}
	if f.catalogConfig.TreeCacheEnabled {
		b.Cache = NewRedisTreeCache(client, f.catalogConfig.TreeCacheTTL, f.logger.Named("tree_cache"))
	}
	return b
}

// CreateInMemoryBackends builds process-local lock and cache. They do not
// coordinate writers running in other instances.
func (f *TreeBackendFactory) CreateInMemoryBackends() *TreeBackends {
	b := &TreeBackends{Lock: NewInMemoryTreeLock(f.lockOptions()...)}
	if f.catalogConfig.TreeCacheEnabled {
		b.Cache = NewInMemoryTreeCache(f.catalogConfig.TreeCacheTTL)
	}
	return b
}

// Create returns Redis backends when Redis is enabled and reachable, and
// in-memory backends otherwise if fallback is allowed.
func (f *TreeBackendFactory) Create(ctx context.Context) (*TreeBackends, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory category tree lock")
		return f.CreateInMemoryBackends(), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis category tree lock", zap.String("addr", f.redisConfig.Addr()))
		return f.CreateRedisBackends(client), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for the category tree lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory category tree lock. "+
		"Concurrent writers in other instances will not be serialized.",
		zap.Error(err),
	)
	return f.CreateInMemoryBackends(), nil
}
