package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/powderchaser/backend/internal/domain"
	"github.com/powderchaser/backend/internal/infrastructure/metrics"
	"github.com/powderchaser/backend/internal/pkg/logger"
)

// Source tells the caller where a value came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceStale   Source = "stale"
)

// cacheSchemaVersion is bumped whenever a cached domain type changes shape.
// Entries written under another version are treated as undecodable.
const cacheSchemaVersion = 1

// TimeoutProfile bounds every upstream request of one call.
type TimeoutProfile struct {
	Name       string
	PerRequest time.Duration
}

// Default profiles. Background work also runs under a total budget enforced by its caller.
var (
	ForegroundProfile = TimeoutProfile{Name: "foreground", PerRequest: 10 * time.Second}
	BackgroundProfile = TimeoutProfile{Name: "background", PerRequest: 4 * time.Second}
)

// BackgroundTotalTimeout caps one background refresh run.
const BackgroundTotalTimeout = 30 * time.Second

// SyncOptions tunes one coordinator call.
type SyncOptions struct {
	// ForceRefresh skips the fresh-cache shortcut; the cache is still used as a fallback.
	ForceRefresh bool
	Background   bool
}

// SyncResult is a value plus its provenance.
type SyncResult[T any] struct {
	Value    T
	Source   Source
	CachedAt time.Time
	Age      time.Duration
	// RefreshErr is the network error that caused a stale fallback.
	RefreshErr error
}

// IsStale reports whether the value is an expired cache entry served after a failed refresh.
func (r *SyncResult[T]) IsStale() bool {
	return r.Source == SourceStale
}

// FetchFunc loads a fresh value from the network.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type cachePayload struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

type cachedValue[T any] struct {
	value    T
	cachedAt time.Time
	fresh    bool
}

// Coordinator decides between cache and network for one entity type:
//
//	fresh entry            -> cache
//	stale or missing entry -> network, written back on success
//	network failure        -> stale entry if any, else the error
//
// NotFound and validation failures are returned as-is even when a stale entry exists.
type Coordinator[T any] struct {
	entity  domain.EntityType
	ttl     time.Duration
	store   domain.CacheStore
	now     func() time.Time
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewCoordinator creates a coordinator for entity. now may be nil.
func NewCoordinator[T any](
	entity domain.EntityType,
	store domain.CacheStore,
	now func() time.Time,
	log logger.Logger,
	m *metrics.Metrics,
) *Coordinator[T] {
	if now == nil {
		now = time.Now
	}
	return &Coordinator[T]{
		entity:  entity,
		ttl:     entity.TTL(),
		store:   store,
		now:     now,
		logger:  log.WithField("entity", string(entity)),
		metrics: m,
	}
}

// Get returns the value for key, calling fetch only when the cache cannot answer.
func (c *Coordinator[T]) Get(ctx context.Context, key string, opts SyncOptions, fetch FetchFunc[T]) (*SyncResult[T], error) {
	if opts.ForceRefresh {
		value, err := fetch(ctx)
		if err == nil {
			return c.storeFresh(ctx, key, value)
		}
		if !canFallBack(ctx, err) {
			return nil, err
		}
		return c.fallback(key, err, c.readCache(ctx, key))
	}

	cached := c.readCache(ctx, key)
	if cached != nil && cached.fresh {
		return &SyncResult[T]{
			Value:    cached.value,
			Source:   SourceCache,
			CachedAt: cached.cachedAt,
			Age:      c.age(cached.cachedAt),
		}, nil
	}

	value, err := fetch(ctx)
	if err == nil {
		return c.storeFresh(ctx, key, value)
	}
	if !canFallBack(ctx, err) {
		return nil, err
	}
	return c.fallback(key, err, cached)
}

// canFallBack is false for permanent failures and for callers that went away.
func canFallBack(ctx context.Context, err error) bool {
	return ctx.Err() == nil && !domain.IsPermanent(err)
}

func (c *Coordinator[T]) fallback(key string, err error, cached *cachedValue[T]) (*SyncResult[T], error) {
	if cached == nil {
		return nil, err
	}

	c.logger.Warnf("refresh of %s failed, serving entry cached at %s: %v",
		key, cached.cachedAt.Format(time.RFC3339), err)
	c.metrics.StaleFallback(string(c.entity))

	return &SyncResult[T]{
		Value:      cached.value,
		Source:     SourceStale,
		CachedAt:   cached.cachedAt,
		Age:        c.age(cached.cachedAt),
		RefreshErr: err,
	}, nil
}

// storeFresh writes a fetched value back unless the caller went away meanwhile.
func (c *Coordinator[T]) storeFresh(ctx context.Context, key string, value T) (*SyncResult[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	now := c.now()
	payload, err := encodePayload(value)
	if err != nil {
		c.logger.Errorf("failed to encode %s for cache: %v", key, err)
	} else if err := c.store.Upsert(ctx, domain.CacheEntry{
		EntityType: c.entity,
		Key:        key,
		Payload:    payload,
		CachedAt:   now,
	}); err != nil {
		c.logger.Warnf("failed to cache %s: %v", key, err)
	}

	return &SyncResult[T]{
		Value:    value,
		Source:   SourceNetwork,
		CachedAt: now,
	}, nil
}

// readCache returns nil for a miss, an unreadable store or an undecodable entry.
func (c *Coordinator[T]) readCache(ctx context.Context, key string) *cachedValue[T] {
	entity := string(c.entity)

	entry, err := c.store.Get(ctx, c.entity, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			c.metrics.CacheLookup(entity, metrics.OutcomeMiss)
		} else {
			c.logger.Warnf("cache read of %s failed: %v", key, err)
			c.metrics.CacheLookup(entity, metrics.OutcomeStoreError)
		}
		return nil
	}

	value, err := decodePayload[T](entry.Payload)
	if err != nil {
		c.logger.Warnf("discarding cached %s: %v", key, err)
		c.metrics.CacheLookup(entity, metrics.OutcomeDecodeError)
		return nil
	}

	fresh := c.age(entry.CachedAt) < c.ttl
	if fresh {
		c.metrics.CacheLookup(entity, metrics.OutcomeFresh)
	} else {
		c.metrics.CacheLookup(entity, metrics.OutcomeStale)
	}
	return &cachedValue[T]{value: value, cachedAt: entry.CachedAt, fresh: fresh}
}

func (c *Coordinator[T]) age(cachedAt time.Time) time.Duration {
	age := c.now().Sub(cachedAt)
	if age < 0 {
		return 0
	}
	return age
}

func encodePayload[T any](value T) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cachePayload{Version: cacheSchemaVersion, Data: data})
}

func decodePayload[T any](payload []byte) (T, error) {
	var zero T

	var envelope cachePayload
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if envelope.Version != cacheSchemaVersion {
		return zero, fmt.Errorf("%w: schema version %d, want %d", domain.ErrDecode, envelope.Version, cacheSchemaVersion)
	}

	var value T
	if err := json.Unmarshal(envelope.Data, &value); err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return value, nil
}
