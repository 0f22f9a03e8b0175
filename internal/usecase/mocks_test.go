package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/powderchaser/backend/internal/domain"
)

// MockCacheStore is a mock implementation of domain.CacheStore
type MockCacheStore struct {
	mu        sync.Mutex
	data      map[string]domain.CacheEntry
	getError  error
	setError  error
	getCalls  int
	setCalls  int
	deleteErr error
}

func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{data: make(map[string]domain.CacheEntry)}
}

func storeKey(entity domain.EntityType, key string) string {
	return string(entity) + "|" + key
}

func (m *MockCacheStore) Get(ctx context.Context, entity domain.EntityType, key string) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getError != nil {
		return nil, m.getError
	}
	entry, ok := m.data[storeKey(entity, key)]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &entry, nil
}

func (m *MockCacheStore) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setError != nil {
		return m.setError
	}
	m.data[storeKey(entry.EntityType, entry.Key)] = entry
	return nil
}

func (m *MockCacheStore) DeleteAll(ctx context.Context, entity domain.EntityType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for k, e := range m.data {
		if e.EntityType == entity {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MockCacheStore) DeleteExpired(ctx context.Context, entity domain.EntityType, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := 0
	for k, e := range m.data {
		if e.EntityType == entity && e.CachedAt.Before(before) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

// seed stores value the way a coordinator would have, cachedAt ago.
func (m *MockCacheStore) seed(entity domain.EntityType, key string, value interface{}, cachedAt time.Time) {
	payload, err := encodePayload(value)
	if err != nil {
		panic(err)
	}
	m.data[storeKey(entity, key)] = domain.CacheEntry{EntityType: entity, Key: key, Payload: payload, CachedAt: cachedAt}
}

func (m *MockCacheStore) entry(entity domain.EntityType, key string) (domain.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[storeKey(entity, key)]
	return e, ok
}

func (m *MockCacheStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// MockResortAPI is a mock implementation of domain.ResortAPI. Each endpoint
// counts its calls and returns the configured value or error.
type MockResortAPI struct {
	resorts       []domain.Resort
	resortsError  error
	resort        *domain.Resort
	resortError   error
	conditions    []domain.WeatherCondition
	conditionsErr error
	summary       *domain.SnowQualitySummary
	summaryError  error
	timeline      *domain.Timeline
	timelineError error

	batchQuality       map[string]domain.SnowQualitySummaryLight
	batchQualityError  error
	batchQualityIDs    [][]string
	batchQualityDelay  time.Duration
	batchConditions    map[string][]domain.WeatherCondition
	batchConditionsErr error

	recommendations      []domain.Recommendation
	recommendationsError error
	lastQuery            domain.RecommendationQuery

	listCalls            atomic.Int32
	resortCalls          atomic.Int32
	conditionsCalls      atomic.Int32
	summaryCalls         atomic.Int32
	timelineCalls        atomic.Int32
	batchQualityCalls    atomic.Int32
	batchConditionsCalls atomic.Int32
	recommendationsCalls atomic.Int32
	bestCalls            atomic.Int32

	mu sync.Mutex
}

func NewMockResortAPI() *MockResortAPI {
	return &MockResortAPI{}
}

func (m *MockResortAPI) ListResorts(ctx context.Context) ([]domain.Resort, error) {
	m.listCalls.Add(1)
	if m.resortsError != nil {
		return nil, m.resortsError
	}
	return m.resorts, nil
}

func (m *MockResortAPI) GetResort(ctx context.Context, resortID string) (*domain.Resort, error) {
	m.resortCalls.Add(1)
	if m.resortError != nil {
		return nil, m.resortError
	}
	return m.resort, nil
}

func (m *MockResortAPI) GetConditions(ctx context.Context, resortID string) ([]domain.WeatherCondition, error) {
	m.conditionsCalls.Add(1)
	if m.conditionsErr != nil {
		return nil, m.conditionsErr
	}
	return m.conditions, nil
}

func (m *MockResortAPI) GetQualitySummary(ctx context.Context, resortID string) (*domain.SnowQualitySummary, error) {
	m.summaryCalls.Add(1)
	if m.summaryError != nil {
		return nil, m.summaryError
	}
	return m.summary, nil
}

func (m *MockResortAPI) GetTimeline(ctx context.Context, resortID string, level domain.ElevationLevel) (*domain.Timeline, error) {
	m.timelineCalls.Add(1)
	if m.timelineError != nil {
		return nil, m.timelineError
	}
	return m.timeline, nil
}

func (m *MockResortAPI) BatchConditions(ctx context.Context, resortIDs []string) (map[string][]domain.WeatherCondition, error) {
	m.batchConditionsCalls.Add(1)
	if m.batchConditionsErr != nil {
		return nil, m.batchConditionsErr
	}
	return m.batchConditions, nil
}

func (m *MockResortAPI) BatchQuality(ctx context.Context, resortIDs []string) (map[string]domain.SnowQualitySummaryLight, error) {
	m.batchQualityCalls.Add(1)
	m.mu.Lock()
	m.batchQualityIDs = append(m.batchQualityIDs, append([]string(nil), resortIDs...))
	m.mu.Unlock()

	if m.batchQualityDelay > 0 {
		select {
		case <-time.After(m.batchQualityDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.batchQualityError != nil {
		return nil, m.batchQualityError
	}
	return m.batchQuality, nil
}

func (m *MockResortAPI) Recommendations(ctx context.Context, query domain.RecommendationQuery) ([]domain.Recommendation, error) {
	m.recommendationsCalls.Add(1)
	m.mu.Lock()
	m.lastQuery = query
	m.mu.Unlock()
	if m.recommendationsError != nil {
		return nil, m.recommendationsError
	}
	return m.recommendations, nil
}

func (m *MockResortAPI) BestRecommendations(ctx context.Context, query domain.BestRecommendationQuery) ([]domain.Recommendation, error) {
	m.bestCalls.Add(1)
	if m.recommendationsError != nil {
		return nil, m.recommendationsError
	}
	return m.recommendations, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ptr[T any](v T) *T {
	return &v
}
