// Package cache decorates a repository with a Redis read-through for
// point lookups. Reads fall back to the store whenever Redis is
// unavailable; writes always reach the store first and then invalidate
// whatever they may have made stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	mongorepo "github.com/idlem1nd/MongoRepository"
	"github.com/idlem1nd/MongoRepository/config"
	"github.com/idlem1nd/MongoRepository/logger"
)

const (
	defaultTTL    = 5 * time.Minute
	defaultPrefix = "mongorepo"
	scanBatch     = 100
)

// Repository is a caching wrapper around a mongorepo.Repository.
// Cached entries live under <prefix>:<collection>:<key> and hold the
// JSON-encoded entity. Misses are not cached.
type Repository[T any, K comparable] struct {
	store   *mongorepo.Repository[T, K]
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	keyFunc func(K) string
}

// Option adjusts cache construction.
type Option func(*settings)

type settings struct {
	ttl    time.Duration
	prefix string
}

// WithTTL sets the lifetime of cached entries.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key namespace prefix.
func WithPrefix(prefix string) Option {
	return func(s *settings) {
		s.prefix = prefix
	}
}

// FromConfig takes TTL and prefix from a RedisConfig.
func FromConfig(cfg config.RedisConfig) Option {
	return func(s *settings) {
		if cfg.TTLSeconds > 0 {
			s.ttl = cfg.TTL()
		}
		if cfg.KeyPrefix != "" {
			s.prefix = cfg.KeyPrefix
		}
	}
}

// New wraps store with a cache backed by client.
func New[T any, K comparable](store *mongorepo.Repository[T, K], client *redis.Client, opts ...Option) *Repository[T, K] {
	s := settings{ttl: defaultTTL, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&s)
	}
	return &Repository[T, K]{
		store:   store,
		client:  client,
		prefix:  s.prefix,
		ttl:     s.ttl,
		keyFunc: func(id K) string { return fmt.Sprint(id) },
	}
}

// WithKeyFunc replaces the default fmt.Sprint key formatting, for key
// types whose printed form is unwieldy.
func (c *Repository[T, K]) WithKeyFunc(f func(K) string) *Repository[T, K] {
	c.keyFunc = f
	return c
}

// Store returns the wrapped repository, for operations the cache does
// not intercept (Find, Count, Aggregate and the rest).
func (c *Repository[T, K]) Store() *mongorepo.Repository[T, K] {
	return c.store
}

func (c *Repository[T, K]) key(id K) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, c.store.Name(), c.keyFunc(id))
}

// GetByID consults the cache first and falls back to the store,
// back-filling on a hit from the store. Cache failures degrade to the
// store and are logged, never returned.
func (c *Repository[T, K]) GetByID(ctx context.Context, id K) (*T, error) {
	key := c.key(id)

	payload, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var entity T
		if err := json.Unmarshal([]byte(payload), &entity); err == nil {
			return &entity, nil
		}
		logger.CtxWarn(ctx, "Dropping undecodable cache entry", slog.String("key", key))
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		logger.CtxWarn(ctx, "Cache read failed, falling back to store",
			slog.String("key", key),
			slog.String("reason", err.Error()),
		)
	}

	entity, err := c.store.GetByID(ctx, id)
	if err != nil || entity == nil {
		return entity, err
	}

	if payload, err := json.Marshal(entity); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logger.CtxWarn(ctx, "Cache backfill failed",
				slog.String("key", key),
				slog.String("reason", err.Error()),
			)
		}
	}
	return entity, nil
}

// Add inserts through the store, then invalidates the entity's key.
func (c *Repository[T, K]) Add(ctx context.Context, entity *T) error {
	if err := c.store.Add(ctx, entity); err != nil {
		return err
	}
	return c.invalidate(ctx, idOf[T, K](entity))
}

// AddMany inserts through the store, then invalidates every inserted
// key.
func (c *Repository[T, K]) AddMany(ctx context.Context, entities []*T) error {
	if err := c.store.AddMany(ctx, entities); err != nil {
		return err
	}
	return c.invalidate(ctx, idsOf[T, K](entities)...)
}

// Update upserts through the store, then invalidates the entity's key.
func (c *Repository[T, K]) Update(ctx context.Context, entity *T) error {
	if err := c.store.Update(ctx, entity); err != nil {
		return err
	}
	return c.invalidate(ctx, idOf[T, K](entity))
}

// UpdateMany upserts through the store. The batch may have applied
// partially on failure, so the affected keys are invalidated even then,
// and any invalidation failure is joined onto the store error.
func (c *Repository[T, K]) UpdateMany(ctx context.Context, entities []*T) error {
	storeErr := c.store.UpdateMany(ctx, entities)
	invErr := c.invalidate(ctx, idsOf[T, K](entities)...)
	return errors.Join(storeErr, invErr)
}

// Delete removes through the store, then invalidates the key.
func (c *Repository[T, K]) Delete(ctx context.Context, id K) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	return c.invalidate(ctx, id)
}

// DeleteEntity removes through the store, then invalidates the key.
func (c *Repository[T, K]) DeleteEntity(ctx context.Context, entity *T) error {
	return c.Delete(ctx, idOf[T, K](entity))
}

// DeleteWhere removes through the store. The matched set is unknown
// here, so the whole collection namespace is flushed.
func (c *Repository[T, K]) DeleteWhere(ctx context.Context, filter interface{}) error {
	if err := c.store.DeleteWhere(ctx, filter); err != nil {
		return err
	}
	return c.Flush(ctx)
}

// DeleteAll clears the collection, then flushes its namespace.
func (c *Repository[T, K]) DeleteAll(ctx context.Context) error {
	if err := c.store.DeleteAll(ctx); err != nil {
		return err
	}
	return c.Flush(ctx)
}

// Flush removes every cached entry for the wrapped collection.
func (c *Repository[T, K]) Flush(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:%s:*", c.prefix, c.store.Name())
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatch {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (c *Repository[T, K]) invalidate(ctx context.Context, ids ...K) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// The wrapped repository only constructs when *T implements Keyed[K],
// so the assertions here cannot fail.
func idOf[T any, K comparable](entity *T) K {
	return any(entity).(mongorepo.Keyed[K]).GetID()
}

func idsOf[T any, K comparable](entities []*T) []K {
	ids := make([]K, len(entities))
	for i, entity := range entities {
		ids[i] = idOf[T, K](entity)
	}
	return ids
}
