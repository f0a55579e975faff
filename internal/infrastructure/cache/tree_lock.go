package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/domain/catalog"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix      = "lock:"
	defaultLockTTL     = 30 * time.Second
	defaultLockWait    = 5 * time.Second
	minLockRetryDelay  = 20 * time.Millisecond
	maxLockRetryDelay  = 250 * time.Millisecond
	lockReleaseTimeout = 2 * time.Second
)

// releaseScript deletes the lock only while it still holds the caller's token,
// so a holder whose TTL lapsed cannot free a lock someone else took over.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renews the lease only while it still holds the caller's token
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// LockOption configures a tree lock
type LockOption func(*lockOptions)

type lockOptions struct {
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// WithLockTTL bounds how long a crashed holder can keep the lock
func WithLockTTL(ttl time.Duration) LockOption {
	return func(o *lockOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithLockWait bounds how long Acquire waits for a busy lock
func WithLockWait(wait time.Duration) LockOption {
	return func(o *lockOptions) {
		if wait > 0 {
			o.wait = wait
		}
	}
}

// WithLockLogger sets the lock logger
func WithLockLogger(logger *zap.Logger) LockOption {
	return func(o *lockOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newLockOptions(opts []LockOption) lockOptions {
	o := lockOptions{ttl: defaultLockTTL, wait: defaultLockWait, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// lockTimeout maps the end of a wait to the error Acquire returns
func lockTimeout(ctx context.Context, key string) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return catalog.ErrTreeLocked.WithMessage("timed out waiting for lock %q", key)
}

// RedisTreeLock is a single-instance Redis lock (SET NX PX with a random
// token) shared by every process that writes the category tree. While a
// holder is alive its lease is renewed every third of the TTL, so the TTL
// only bounds how long a crashed holder blocks the others.
type RedisTreeLock struct {
	client *redis.Client
	opts   lockOptions
}

// NewRedisTreeLock creates a RedisTreeLock on an existing client
func NewRedisTreeLock(client *redis.Client, opts ...LockOption) *RedisTreeLock {
	return &RedisTreeLock{client: client, opts: newLockOptions(opts)}
}

// Acquire retries SET NX with growing backoff until it succeeds, the
// configured wait elapses or ctx ends.
func (l *RedisTreeLock) Acquire(ctx context.Context, key string) (appcatalog.ReleaseFunc, error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.opts.wait)
	defer cancel()

	delay := minLockRetryDelay
	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.opts.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}
		if ok {
			if attempt > 1 {
				l.opts.logger.Debug("tree lock acquired after contention",
					zap.String("key", key),
					zap.Int("attempts", attempt),
				)
			}
			stop, done := make(chan struct{}), make(chan struct{})
			go l.keepAlive(redisKey, token, stop, done)
			return l.releaser(redisKey, token, stop, done), nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, lockTimeout(waitCtx, key)
		case <-timer.C:
		}
		delay = min(delay*2, maxLockRetryDelay)
	}
}

// keepAlive extends the lease until stop is closed or the lease is lost
func (l *RedisTreeLock) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(l.opts.ttl/3, minLockRetryDelay))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
		n, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, l.opts.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			l.opts.logger.Warn("failed to extend tree lock", zap.String("key", redisKey), zap.Error(err))
		case n == 0:
			l.opts.logger.Error("tree lock lost while held", zap.String("key", redisKey))
			return
		}
	}
}

func (l *RedisTreeLock) releaser(redisKey, token string, stop chan<- struct{}, done <-chan struct{}) appcatalog.ReleaseFunc {
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(ctx, lockReleaseTimeout)
			defer cancel()

			var n int64
			n, err = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int64()
			if err != nil {
				err = fmt.Errorf("failed to release lock %q: %w", redisKey, err)
				return
			}
			if n == 0 {
				l.opts.logger.Warn("tree lock expired before release", zap.String("key", redisKey))
			}
		})
		return err
	}
}

// InMemoryTreeLock serializes writers inside one process. Each key maps to
// a one-slot channel; holding the lock means owning the slot.
type InMemoryTreeLock struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	opts  lockOptions
}

// NewInMemoryTreeLock creates an InMemoryTreeLock. The TTL option is ignored:
// a holder in the same process cannot vanish without releasing.
func NewInMemoryTreeLock(opts ...LockOption) *InMemoryTreeLock {
	return &InMemoryTreeLock{slots: make(map[string]chan struct{}), opts: newLockOptions(opts)}
}

func (l *InMemoryTreeLock) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until the slot for key is free, the wait elapses or ctx ends
func (l *InMemoryTreeLock) Acquire(ctx context.Context, key string) (appcatalog.ReleaseFunc, error) {
	ch := l.slot(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.opts.wait)
	defer cancel()

	select {
	case ch <- struct{}{}:
	case <-waitCtx.Done():
		return nil, lockTimeout(waitCtx, key)
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}

var (
	_ appcatalog.TreeLock = (*RedisTreeLock)(nil)
	_ appcatalog.TreeLock = (*InMemoryTreeLock)(nil)
)
