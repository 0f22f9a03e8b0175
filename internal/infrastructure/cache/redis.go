package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/powderchaser/backend/internal/domain"
)

const (
	redisKeyPrefix     = "powderchaser:cache"
	redisFieldPayload  = "payload"
	redisFieldCachedAt = "cached_at"
	redisScanCount     = 100
)

// RedisStore is a CacheStore keeping one hash per entry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the redis instance at url and verifies it with a ping.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, entity domain.EntityType, key string) (*domain.CacheEntry, error) {
	fields, err := r.client.HGetAll(ctx, entryKey(entity, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis get: %v", domain.ErrCacheUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrCacheMiss
	}

	cachedAt, err := time.Parse(time.RFC3339Nano, fields[redisFieldCachedAt])
	if err != nil {
		// A corrupt timestamp makes the entry unusable; report it as absent.
		return nil, domain.ErrCacheMiss
	}

	return &domain.CacheEntry{
		EntityType: entity,
		Key:        key,
		Payload:    []byte(fields[redisFieldPayload]),
		CachedAt:   cachedAt,
	}, nil
}

func (r *RedisStore) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	err := r.client.HSet(ctx, entryKey(entry.EntityType, entry.Key),
		redisFieldPayload, entry.Payload,
		redisFieldCachedAt, entry.CachedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: redis upsert: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RedisStore) DeleteAll(ctx context.Context, entity domain.EntityType) error {
	return r.scan(ctx, entity, func(keys []string) error {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("%w: redis delete: %v", domain.ErrCacheUnavailable, err)
		}
		return nil
	})
}

func (r *RedisStore) DeleteExpired(ctx context.Context, entity domain.EntityType, before time.Time) (int, error) {
	removed := 0
	err := r.scan(ctx, entity, func(keys []string) error {
		for _, k := range keys {
			raw, err := r.client.HGet(ctx, k, redisFieldCachedAt).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return fmt.Errorf("%w: redis read: %v", domain.ErrCacheUnavailable, err)
			}

			cachedAt, err := time.Parse(time.RFC3339Nano, raw)
			if err == nil && !cachedAt.Before(before) {
				continue
			}

			if err := r.client.Del(ctx, k).Err(); err != nil {
				return fmt.Errorf("%w: redis delete: %v", domain.ErrCacheUnavailable, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// HealthCheck pings redis.
func (r *RedisStore) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// scan walks every key of the entity type in batches.
func (r *RedisStore) scan(ctx context.Context, entity domain.EntityType, fn func(keys []string) error) error {
	pattern := fmt.Sprintf("%s:%s:*", redisKeyPrefix, entity)

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, redisScanCount).Result()
		if err != nil {
			return fmt.Errorf("%w: redis scan: %v", domain.ErrCacheUnavailable, err)
		}

		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func entryKey(entity domain.EntityType, key string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, entity, key)
}
