package domain

import "time"

// EntityType names a cached entity family. Each family has a fixed TTL.
type EntityType string

const (
	EntityResortList          EntityType = "resort_list"
	EntityResort              EntityType = "resort"
	EntityConditions          EntityType = "conditions"
	EntityQualitySummary      EntityType = "quality_summary"
	EntityQualityBatch        EntityType = "quality_batch"
	EntityConditionsBatch     EntityType = "conditions_batch"
	EntityTimeline            EntityType = "timeline"
	EntityRecommendations     EntityType = "recommendations"
	EntityBestRecommendations EntityType = "best_recommendations"
)

// TTL policy per entity type
const (
	ResortTTL          = 6 * time.Hour
	ConditionsTTL      = 30 * time.Minute
	RecommendationsTTL = 15 * time.Minute
)

var entityTTLs = map[EntityType]time.Duration{
	EntityResortList:          ResortTTL,
	EntityResort:              ResortTTL,
	EntityConditions:          ConditionsTTL,
	EntityQualitySummary:      ConditionsTTL,
	EntityQualityBatch:        ConditionsTTL,
	EntityConditionsBatch:     ConditionsTTL,
	EntityTimeline:            ConditionsTTL,
	EntityRecommendations:     RecommendationsTTL,
	EntityBestRecommendations: RecommendationsTTL,
}

// TTL returns the freshness window of the entity type. Unregistered types get the
// shortest window.
func (e EntityType) TTL() time.Duration {
	if ttl, ok := entityTTLs[e]; ok {
		return ttl
	}
	return RecommendationsTTL
}

// AllEntityTypes lists every cached entity type.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityResortList,
		EntityResort,
		EntityConditions,
		EntityQualitySummary,
		EntityQualityBatch,
		EntityConditionsBatch,
		EntityTimeline,
		EntityRecommendations,
		EntityBestRecommendations,
	}
}

// ResortListKey is the single key under which the resort list is cached.
const ResortListKey = "all"

// CacheEntry is one stored payload. There is at most one entry per (EntityType, Key).
type CacheEntry struct {
	EntityType EntityType `json:"entityType"`
	Key        string     `json:"key"`
	Payload    []byte     `json:"payload"`
	CachedAt   time.Time  `json:"cachedAt"`
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	age := now.Sub(e.CachedAt)
	if age < 0 {
		return 0
	}
	return age
}

// IsFresh reports whether the entry is younger than its entity type's TTL.
func (e *CacheEntry) IsFresh(now time.Time) bool {
	return e.Age(now) < e.EntityType.TTL()
}
