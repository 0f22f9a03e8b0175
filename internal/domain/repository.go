package domain

import (
	"context"
	"time"
)

// CacheStore persists (payload, cachedAt) pairs per entity type and key.
// Get never judges expiry; that belongs to the caller.
type CacheStore interface {
	// Get returns ErrCacheMiss when absent and an error wrapping ErrCacheUnavailable on I/O failure.
	Get(ctx context.Context, entity EntityType, key string) (*CacheEntry, error)
	// Upsert replaces any existing entry with the same entity type and key.
	Upsert(ctx context.Context, entry CacheEntry) error
	DeleteAll(ctx context.Context, entity EntityType) error
	// DeleteExpired removes entries cached before the given time and returns how many went.
	DeleteExpired(ctx context.Context, entity EntityType, before time.Time) (int, error)
}

// ResortAPI is the remote resort/weather backend.
type ResortAPI interface {
	ListResorts(ctx context.Context) ([]Resort, error)
	GetResort(ctx context.Context, resortID string) (*Resort, error)
	GetConditions(ctx context.Context, resortID string) ([]WeatherCondition, error)
	GetQualitySummary(ctx context.Context, resortID string) (*SnowQualitySummary, error)
	GetTimeline(ctx context.Context, resortID string, level ElevationLevel) (*Timeline, error)
	// BatchConditions omits ids the backend reported an error for.
	BatchConditions(ctx context.Context, resortIDs []string) (map[string][]WeatherCondition, error)
	BatchQuality(ctx context.Context, resortIDs []string) (map[string]SnowQualitySummaryLight, error)
	Recommendations(ctx context.Context, query RecommendationQuery) ([]Recommendation, error)
	BestRecommendations(ctx context.Context, query BestRecommendationQuery) ([]Recommendation, error)
}

// FavoriteSource provides the externally owned set of favorite resort ids.
type FavoriteSource interface {
	FavoriteResortIDs(ctx context.Context) ([]string, error)
}

// StaticFavorites is a FavoriteSource backed by a fixed list.
type StaticFavorites []string

// FavoriteResortIDs returns a copy of the list.
func (s StaticFavorites) FavoriteResortIDs(ctx context.Context) ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}
