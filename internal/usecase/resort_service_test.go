package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/powderchaser/backend/internal/domain"
	"github.com/powderchaser/backend/internal/pkg/logger"
)

func newTestService(api *MockResortAPI, store *MockCacheStore, clock *fakeClock, favorites ...string) *ResortService {
	return NewResortService(api, store, domain.StaticFavorites(favorites), ResortServiceConfig{Now: clock.Now}, logger.Discard(), nil)
}

func TestNewResortService(t *testing.T) {
	t.Run("applies default timeout profiles", func(t *testing.T) {
		svc := NewResortService(NewMockResortAPI(), NewMockCacheStore(), nil, ResortServiceConfig{}, logger.Discard(), nil)
		if svc.cfg.Foreground.PerRequest != 10*time.Second {
			t.Errorf("foreground = %v, want 10s", svc.cfg.Foreground.PerRequest)
		}
		if svc.cfg.Background.PerRequest != 4*time.Second {
			t.Errorf("background = %v, want 4s", svc.cfg.Background.PerRequest)
		}
		if svc.cfg.BackgroundTotal != 30*time.Second {
			t.Errorf("background total = %v, want 30s", svc.cfg.BackgroundTotal)
		}
	})

	t.Run("background profile is shorter", func(t *testing.T) {
		svc := NewResortService(NewMockResortAPI(), NewMockCacheStore(), nil, ResortServiceConfig{}, logger.Discard(), nil)

		fg, cancelFg := svc.requestTimeout(context.Background(), SyncOptions{})
		defer cancelFg()
		bg, cancelBg := svc.requestTimeout(context.Background(), SyncOptions{Background: true})
		defer cancelBg()

		fgDeadline, _ := fg.Deadline()
		bgDeadline, _ := bg.Deadline()
		if !bgDeadline.Before(fgDeadline) {
			t.Errorf("background deadline %v not before foreground %v", bgDeadline, fgDeadline)
		}
	})
}

func TestResortServiceGetResort(t *testing.T) {
	ctx := context.Background()

	t.Run("caches the resort", func(t *testing.T) {
		api := NewMockResortAPI()
		api.resort = &domain.Resort{ID: "alta", Name: "Alta"}
		clock := newFakeClock()
		svc := newTestService(api, NewMockCacheStore(), clock)

		first, err := svc.GetResort(ctx, "alta", SyncOptions{})
		if err != nil {
			t.Fatalf("GetResort() error = %v", err)
		}
		clock.Advance(time.Hour)
		second, err := svc.GetResort(ctx, "alta", SyncOptions{})
		if err != nil {
			t.Fatalf("GetResort() error = %v", err)
		}

		if api.resortCalls.Load() != 1 {
			t.Errorf("upstream calls = %d, want 1", api.resortCalls.Load())
		}
		if first.Source != SourceNetwork || second.Source != SourceCache {
			t.Errorf("sources = %s, %s; want network, cache", first.Source, second.Source)
		}
		if second.Value.Name != "Alta" {
			t.Errorf("Name = %q", second.Value.Name)
		}
	})

	t.Run("404 propagates without fallback", func(t *testing.T) {
		api := NewMockResortAPI()
		api.resortError = fmt.Errorf("%w: status 404", domain.ErrNotFound)
		clock := newFakeClock()
		store := NewMockCacheStore()
		store.seed(domain.EntityResort, "closed", domain.Resort{ID: "closed"}, clock.Now().Add(-7*time.Hour))
		svc := newTestService(api, store, clock)

		_, err := svc.GetResort(ctx, "closed", SyncOptions{})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
		if e, _ := store.entry(domain.EntityResort, "closed"); !e.CachedAt.Equal(clock.Now().Add(-7 * time.Hour)) {
			t.Error("404 touched the cache entry")
		}
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		svc := newTestService(NewMockResortAPI(), NewMockCacheStore(), newFakeClock())
		_, err := svc.GetResort(ctx, "  ", SyncOptions{})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}

func TestResortServiceGetConditions(t *testing.T) {
	ctx := context.Background()

	t.Run("override applies to fresh and cached data alike", func(t *testing.T) {
		api := NewMockResortAPI()
		api.conditions = []domain.WeatherCondition{
			{ResortID: "alta", ElevationLevel: domain.ElevationBase, CurrentTempCelsius: 15.0, SnowQuality: domain.QualityGood},
		}
		clock := newFakeClock()
		store := NewMockCacheStore()
		svc := newTestService(api, store, clock)

		fresh, err := svc.GetConditions(ctx, "alta", SyncOptions{})
		if err != nil {
			t.Fatalf("GetConditions() error = %v", err)
		}
		cached, err := svc.GetConditions(ctx, "alta", SyncOptions{})
		if err != nil {
			t.Fatalf("GetConditions() error = %v", err)
		}

		for _, res := range []*SyncResult[[]domain.WeatherCondition]{fresh, cached} {
			if res.Value[0].SnowQuality != domain.QualityHorrible {
				t.Errorf("%s quality = %q, want horrible", res.Source, res.Value[0].SnowQuality)
			}
		}

		// The cache keeps the backend's label.
		value, err := decodePayload[[]domain.WeatherCondition](mustEntry(t, store, domain.EntityConditions, "alta").Payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if value[0].SnowQuality != domain.QualityGood {
			t.Errorf("cached quality = %q, want good", value[0].SnowQuality)
		}
	})

	t.Run("stale fallback after 5xx", func(t *testing.T) {
		api := NewMockResortAPI()
		api.conditionsErr = fmt.Errorf("%w: status 503", domain.ErrNetwork)
		clock := newFakeClock()
		store := NewMockCacheStore()
		store.seed(domain.EntityConditions, "alta", []domain.WeatherCondition{{ResortID: "alta", SnowQuality: domain.QualityFair}}, clock.Now().Add(-2*time.Hour))
		svc := newTestService(api, store, clock)

		res, err := svc.GetConditions(ctx, "alta", SyncOptions{})
		if err != nil {
			t.Fatalf("GetConditions() error = %v", err)
		}
		if !res.IsStale() || res.Age != 2*time.Hour {
			t.Errorf("source = %s, age = %v; want stale, 2h", res.Source, res.Age)
		}
	})
}

func mustEntry(t *testing.T, store *MockCacheStore, entity domain.EntityType, key string) domain.CacheEntry {
	t.Helper()
	e, ok := store.entry(entity, key)
	if !ok {
		t.Fatalf("no cache entry for %s/%s", entity, key)
	}
	return e
}

func TestResortServiceGetBatchQuality(t *testing.T) {
	ctx := context.Background()

	t.Run("one upstream call and order-independent cache key", func(t *testing.T) {
		api := NewMockResortAPI()
		api.batchQuality = map[string]domain.SnowQualitySummaryLight{
			"alta":    {ResortID: "alta", Quality: domain.QualityExcellent},
			"big-sky": {ResortID: "big-sky", Quality: domain.QualityGood},
		}
		clock := newFakeClock()
		svc := newTestService(api, NewMockCacheStore(), clock)

		first, err := svc.GetBatchQuality(ctx, []string{"vail", "alta", "big-sky"}, SyncOptions{})
		if err != nil {
			t.Fatalf("GetBatchQuality() error = %v", err)
		}
		second, err := svc.GetBatchQuality(ctx, []string{"big-sky", "vail", "alta", "alta"}, SyncOptions{})
		if err != nil {
			t.Fatalf("GetBatchQuality() error = %v", err)
		}

		if api.batchQualityCalls.Load() != 1 {
			t.Errorf("upstream calls = %d, want 1", api.batchQualityCalls.Load())
		}
		if !reflect.DeepEqual(api.batchQualityIDs[0], []string{"alta", "big-sky", "vail"}) {
			t.Errorf("upstream ids = %v", api.batchQualityIDs[0])
		}
		if second.Source != SourceCache {
			t.Errorf("second Source = %s, want cache", second.Source)
		}
		for _, res := range []*BatchSyncResult[domain.SnowQualitySummaryLight]{first, second} {
			if !reflect.DeepEqual(res.Missing, []string{"vail"}) {
				t.Errorf("Missing = %v, want [vail]", res.Missing)
			}
			if len(res.Value) != 2 {
				t.Errorf("found %d summaries, want 2", len(res.Value))
			}
		}
	})

	t.Run("a dismissed caller does not fail the others", func(t *testing.T) {
		api := NewMockResortAPI()
		api.batchQuality = map[string]domain.SnowQualitySummaryLight{
			"alta": {ResortID: "alta", Quality: domain.QualityGood},
		}
		api.batchQualityDelay = 200 * time.Millisecond
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		ctxA, cancelA := context.WithCancel(ctx)
		errA := make(chan error, 1)
		go func() {
			_, err := svc.GetBatchQuality(ctxA, []string{"alta"}, SyncOptions{})
			errA <- err
		}()
		for api.batchQualityCalls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}

		type outcome struct {
			res *BatchSyncResult[domain.SnowQualitySummaryLight]
			err error
		}
		resB := make(chan outcome, 1)
		go func() {
			res, err := svc.GetBatchQuality(ctx, []string{"alta"}, SyncOptions{})
			resB <- outcome{res, err}
		}()
		time.Sleep(30 * time.Millisecond)
		cancelA()

		if err := <-errA; !errors.Is(err, context.Canceled) {
			t.Errorf("dismissed caller error = %v, want context.Canceled", err)
		}
		b := <-resB
		if b.err != nil {
			t.Fatalf("other caller error = %v, want result", b.err)
		}
		if b.res.Value["alta"].Quality != domain.QualityGood {
			t.Errorf("other caller got %+v", b.res.Value)
		}
		if api.batchQualityCalls.Load() != 1 {
			t.Errorf("upstream calls = %d, want 1", api.batchQualityCalls.Load())
		}
	})

	t.Run("empty id set is rejected", func(t *testing.T) {
		api := NewMockResortAPI()
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())
		_, err := svc.GetBatchQuality(ctx, nil, SyncOptions{})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if api.batchQualityCalls.Load() != 0 {
			t.Error("upstream called for empty set")
		}
	})
}

func TestResortServiceGetBatchConditions(t *testing.T) {
	api := NewMockResortAPI()
	api.batchConditions = map[string][]domain.WeatherCondition{
		"alta": {{ResortID: "alta", CurrentTempCelsius: 18, SnowQuality: domain.QualityGood}},
	}
	svc := newTestService(api, NewMockCacheStore(), newFakeClock())

	res, err := svc.GetBatchConditions(context.Background(), []string{"alta", "vail"}, SyncOptions{})
	if err != nil {
		t.Fatalf("GetBatchConditions() error = %v", err)
	}
	if api.batchConditionsCalls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", api.batchConditionsCalls.Load())
	}
	if res.Value["alta"][0].SnowQuality != domain.QualityHorrible {
		t.Errorf("alta quality = %q, want horrible", res.Value["alta"][0].SnowQuality)
	}
	if !reflect.DeepEqual(res.Missing, []string{"vail"}) {
		t.Errorf("Missing = %v, want [vail]", res.Missing)
	}
}

func TestResortServiceGetTimeline(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to mid elevation", func(t *testing.T) {
		api := NewMockResortAPI()
		api.timeline = &domain.Timeline{ResortID: "alta", ElevationLevel: domain.ElevationMid}
		store := NewMockCacheStore()
		svc := newTestService(api, store, newFakeClock())

		if _, err := svc.GetTimeline(ctx, "alta", "", SyncOptions{}); err != nil {
			t.Fatalf("GetTimeline() error = %v", err)
		}
		mustEntry(t, store, domain.EntityTimeline, "alta:mid")
	})

	t.Run("rejects unknown elevation", func(t *testing.T) {
		svc := newTestService(NewMockResortAPI(), NewMockCacheStore(), newFakeClock())
		_, err := svc.GetTimeline(ctx, "alta", "summit", SyncOptions{})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}

func TestResortServiceGetRecommendations(t *testing.T) {
	ctx := context.Background()

	newAPI := func() *MockResortAPI {
		api := NewMockResortAPI()
		api.recommendations = []domain.Recommendation{
			rec("C", domain.QualityGood, 30, 1),
			rec("A", domain.QualityExcellent, 5, 10),
			rec("B", domain.QualityExcellent, 12, 50),
		}
		return api
	}

	t.Run("ranks results", func(t *testing.T) {
		api := newAPI()
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		res, err := svc.GetRecommendations(ctx, domain.RecommendationQuery{Latitude: 40.6, Longitude: -111.6}, SyncOptions{})
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if got := rankedIDs(res.Value); !equalIDs(got, []string{"B", "A", "C"}) {
			t.Errorf("order = %v, want [B A C]", got)
		}
		if api.lastQuery.RadiusKM != domain.DefaultRecommendationRadiusKM || api.lastQuery.Limit != domain.DefaultRecommendationLimit {
			t.Errorf("query not normalized: %+v", api.lastQuery)
		}
	})

	t.Run("override can drop a candidate below min quality", func(t *testing.T) {
		api := newAPI()
		api.recommendations[1].CurrentTempCelsius = ptr(16.0)
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		res, err := svc.GetRecommendations(ctx, domain.RecommendationQuery{
			Latitude: 40.6, Longitude: -111.6, MinQuality: domain.QualityGood,
		}, SyncOptions{})
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if got := rankedIDs(res.Value); !equalIDs(got, []string{"B", "C"}) {
			t.Errorf("order = %v, want [B C]", got)
		}
	})

	t.Run("invalid coordinates never reach the network", func(t *testing.T) {
		api := newAPI()
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		_, err := svc.GetRecommendations(ctx, domain.RecommendationQuery{Latitude: 123}, SyncOptions{})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if api.recommendationsCalls.Load() != 0 {
			t.Error("upstream was called")
		}
	})

	t.Run("best recommendations honor limit", func(t *testing.T) {
		api := newAPI()
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		res, err := svc.GetBestRecommendations(ctx, domain.BestRecommendationQuery{Limit: 2}, SyncOptions{})
		if err != nil {
			t.Fatalf("GetBestRecommendations() error = %v", err)
		}
		if got := rankedIDs(res.Value); !equalIDs(got, []string{"B", "A"}) {
			t.Errorf("order = %v, want [B A]", got)
		}
	})
}

func TestResortServiceGetFavoritesOverview(t *testing.T) {
	ctx := context.Background()

	newAPI := func() *MockResortAPI {
		api := NewMockResortAPI()
		api.resorts = []domain.Resort{{ID: "alta", Name: "Alta", Country: "US"}, {ID: "vail", Name: "Vail", Country: "US"}}
		api.batchQuality = map[string]domain.SnowQualitySummaryLight{"alta": {ResortID: "alta", Quality: domain.QualityGood}}
		return api
	}

	t.Run("joins names and quality", func(t *testing.T) {
		svc := newTestService(newAPI(), NewMockCacheStore(), newFakeClock())

		overview, err := svc.GetFavoritesOverview(ctx, []string{"vail", "alta"}, SyncOptions{})
		if err != nil {
			t.Fatalf("GetFavoritesOverview() error = %v", err)
		}
		if len(overview.Resorts) != 2 {
			t.Fatalf("rows = %d, want 2", len(overview.Resorts))
		}
		alta := overview.Resorts[0]
		if alta.Name != "Alta" || alta.Quality == nil || alta.Quality.Quality != domain.QualityGood {
			t.Errorf("alta row = %+v", alta)
		}
		if vail := overview.Resorts[1]; vail.Name != "Vail" || vail.Quality != nil {
			t.Errorf("vail row = %+v", vail)
		}
	})

	t.Run("quality failure keeps the names", func(t *testing.T) {
		api := newAPI()
		api.batchQualityError = domain.ErrNetwork
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		overview, err := svc.GetFavoritesOverview(ctx, []string{"alta"}, SyncOptions{})
		if !errors.Is(err, domain.ErrNetwork) {
			t.Errorf("error = %v, want ErrNetwork", err)
		}
		if overview == nil || overview.Names == nil || overview.Resorts[0].Name != "Alta" {
			t.Fatalf("overview = %+v, want names", overview)
		}
		if overview.Quality != nil {
			t.Error("Quality should be nil")
		}
	})

	t.Run("both failures are observable", func(t *testing.T) {
		api := newAPI()
		api.resortsError = domain.ErrNetwork
		api.batchQualityError = fmt.Errorf("%w: status 422", domain.ErrValidation)
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		overview, err := svc.GetFavoritesOverview(ctx, []string{"alta"}, SyncOptions{})
		if overview != nil {
			t.Errorf("overview = %+v, want nil", overview)
		}
		if !errors.Is(err, domain.ErrNetwork) || !errors.Is(err, domain.ErrValidation) {
			t.Errorf("error = %v, want both failures", err)
		}
	})

	t.Run("lookups run concurrently", func(t *testing.T) {
		api := newAPI()
		api.batchQualityDelay = 50 * time.Millisecond
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		if _, err := svc.GetFavoritesOverview(ctx, []string{"alta"}, SyncOptions{}); err != nil {
			t.Fatalf("GetFavoritesOverview() error = %v", err)
		}
		if api.listCalls.Load() != 1 || api.batchQualityCalls.Load() != 1 {
			t.Errorf("calls = %d list, %d batch", api.listCalls.Load(), api.batchQualityCalls.Load())
		}
	})

	t.Run("falls back to configured favorites", func(t *testing.T) {
		api := newAPI()
		svc := newTestService(api, NewMockCacheStore(), newFakeClock(), "alta")

		overview, err := svc.GetFavoritesOverview(ctx, nil, SyncOptions{})
		if err != nil {
			t.Fatalf("GetFavoritesOverview() error = %v", err)
		}
		if len(overview.Resorts) != 1 || overview.Resorts[0].ResortID != "alta" {
			t.Errorf("rows = %+v", overview.Resorts)
		}
	})

	t.Run("no favorites yields an empty overview", func(t *testing.T) {
		api := newAPI()
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())

		overview, err := svc.GetFavoritesOverview(ctx, nil, SyncOptions{})
		if err != nil {
			t.Fatalf("GetFavoritesOverview() error = %v", err)
		}
		if len(overview.Resorts) != 0 || api.listCalls.Load() != 0 {
			t.Errorf("overview = %+v, list calls = %d", overview, api.listCalls.Load())
		}
	})
}

func TestResortServiceRefreshFavorites(t *testing.T) {
	ctx := context.Background()

	t.Run("force refreshes both batches", func(t *testing.T) {
		api := NewMockResortAPI()
		api.batchQuality = map[string]domain.SnowQualitySummaryLight{"alta": {ResortID: "alta"}}
		api.batchConditions = map[string][]domain.WeatherCondition{"alta": {}}
		clock := newFakeClock()
		store := NewMockCacheStore()
		store.seed(domain.EntityQualityBatch, "alta", map[string]domain.SnowQualitySummaryLight{}, clock.Now())
		svc := newTestService(api, store, clock, "alta")

		if err := svc.RefreshFavorites(ctx); err != nil {
			t.Fatalf("RefreshFavorites() error = %v", err)
		}
		if api.batchQualityCalls.Load() != 1 || api.batchConditionsCalls.Load() != 1 {
			t.Errorf("calls = %d quality, %d conditions; want 1 each",
				api.batchQualityCalls.Load(), api.batchConditionsCalls.Load())
		}
		mustEntry(t, store, domain.EntityConditionsBatch, "alta")
	})

	t.Run("nothing to do without favorites", func(t *testing.T) {
		api := NewMockResortAPI()
		svc := newTestService(api, NewMockCacheStore(), newFakeClock())
		if err := svc.RefreshFavorites(ctx); err != nil {
			t.Fatalf("RefreshFavorites() error = %v", err)
		}
		if api.batchQualityCalls.Load() != 0 {
			t.Error("upstream called without favorites")
		}
	})

	t.Run("reports failures", func(t *testing.T) {
		api := NewMockResortAPI()
		api.batchQualityError = domain.ErrNetwork
		api.batchConditions = map[string][]domain.WeatherCondition{}
		svc := newTestService(api, NewMockCacheStore(), newFakeClock(), "alta")

		if err := svc.RefreshFavorites(ctx); !errors.Is(err, domain.ErrNetwork) {
			t.Errorf("error = %v, want ErrNetwork", err)
		}
	})
}

func TestResortServiceCacheMaintenance(t *testing.T) {
	ctx := context.Background()

	t.Run("ClearCache empties every entity type", func(t *testing.T) {
		clock := newFakeClock()
		store := NewMockCacheStore()
		store.seed(domain.EntityResort, "alta", domain.Resort{ID: "alta"}, clock.Now())
		store.seed(domain.EntityTimeline, "alta:mid", domain.Timeline{}, clock.Now())
		svc := newTestService(NewMockResortAPI(), store, clock)

		if err := svc.ClearCache(ctx); err != nil {
			t.Fatalf("ClearCache() error = %v", err)
		}
		if store.len() != 0 {
			t.Errorf("entries left = %d", store.len())
		}
	})

	t.Run("PurgeExpired removes entries past retention", func(t *testing.T) {
		clock := newFakeClock()
		store := NewMockCacheStore()
		store.seed(domain.EntityResort, "old", domain.Resort{}, clock.Now().Add(-100*time.Hour))
		store.seed(domain.EntityConditions, "old", []domain.WeatherCondition{}, clock.Now().Add(-73*time.Hour))
		store.seed(domain.EntityConditions, "recent", []domain.WeatherCondition{}, clock.Now().Add(-time.Hour))
		svc := newTestService(NewMockResortAPI(), store, clock)

		n, err := svc.PurgeExpired(ctx, 72*time.Hour)
		if err != nil {
			t.Fatalf("PurgeExpired() error = %v", err)
		}
		if n != 2 {
			t.Errorf("purged = %d, want 2", n)
		}
		if _, ok := store.entry(domain.EntityConditions, "recent"); !ok {
			t.Error("recent entry was purged")
		}
	})

	t.Run("store errors are joined", func(t *testing.T) {
		store := NewMockCacheStore()
		store.deleteErr = domain.ErrCacheUnavailable
		svc := newTestService(NewMockResortAPI(), store, newFakeClock())

		if err := svc.ClearCache(ctx); !errors.Is(err, domain.ErrCacheUnavailable) {
			t.Errorf("ClearCache() error = %v", err)
		}
		if _, err := svc.PurgeExpired(ctx, time.Hour); !errors.Is(err, domain.ErrCacheUnavailable) {
			t.Errorf("PurgeExpired() error = %v", err)
		}
	})
}
