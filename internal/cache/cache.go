// Package cache memoizes successful read responses in a shared store.
// The cache is an optimization, never a correctness dependency: every
// backend failure or timeout degrades to a miss.
package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store is the backing key/value store. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// DeletePattern enumerates keys with SCAN rather than KEYS so invalidation
// does not block the store, and deletes them in batches.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		deleted int
		batch   []string
	)

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 256 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return deleted, err
		}
		deleted += len(batch)
	}
	return deleted, nil
}

type Cache struct {
	store     Store
	opTimeout time.Duration
}

func New(store Store, opTimeout time.Duration) *Cache {
	return &Cache{store: store, opTimeout: opTimeout}
}

// Key canonicalizes params by sorting keys and joining key:value pairs, so
// logically identical requests produce identical keys regardless of
// parameter order.
func Key(prefix string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(prefix)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte(':')
		} else {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(params[k])
	}
	return b.String()
}

// Get returns the cached payload, or false on miss. Store failures are
// logged and reported as misses; the error comes back alongside so callers
// can observe the degraded read.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	val, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		return nil, false, err
	}
	return val, val != nil, nil
}

// Set stores a payload best-effort; failures are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Invalidate deletes every key matching each glob pattern. Write handlers
// call this synchronously after a committed mutation; a failure here is
// logged and accepted, since stale entries still age out with their TTL.
func (c *Cache) Invalidate(ctx context.Context, patterns ...string) {
	for _, pattern := range patterns {
		ctx, cancel := c.bound(ctx)
		n, err := c.store.DeletePattern(ctx, pattern)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("cache invalidation failed")
			continue
		}
		if n > 0 {
			log.Debug().Str("pattern", pattern).Int("keys", n).Msg("cache invalidated")
		}
	}
}

func (c *Cache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}
