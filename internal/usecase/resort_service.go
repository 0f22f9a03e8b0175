package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/powderchaser/backend/internal/domain"
	"github.com/powderchaser/backend/internal/infrastructure/metrics"
	"github.com/powderchaser/backend/internal/pkg/logger"
)

// ResortServiceConfig holds configuration for the resort service
type ResortServiceConfig struct {
	Foreground TimeoutProfile
	Background TimeoutProfile
	// BackgroundTotal caps a whole RefreshFavorites run.
	BackgroundTotal time.Duration
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

func (c ResortServiceConfig) withDefaults() ResortServiceConfig {
	if c.Foreground.PerRequest <= 0 {
		c.Foreground = ForegroundProfile
	}
	if c.Background.PerRequest <= 0 {
		c.Background = BackgroundProfile
	}
	if c.BackgroundTotal <= 0 {
		c.BackgroundTotal = BackgroundTotalTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// BatchSyncResult is a batch lookup plus the requested ids the backend had nothing for.
type BatchSyncResult[T any] struct {
	*SyncResult[map[string]T]
	Missing []string
}

// FavoriteResort is one row of the favorites overview.
type FavoriteResort struct {
	ResortID string                          `json:"resortId"`
	Name     string                          `json:"name"`
	Country  string                          `json:"country,omitempty"`
	Region   string                          `json:"region,omitempty"`
	Quality  *domain.SnowQualitySummaryLight `json:"quality,omitempty"`
}

// FavoritesOverview combines resort names with batch quality for a favorite set.
// Either lookup may have failed; the failed side is nil.
type FavoritesOverview struct {
	Resorts []FavoriteResort
	Names   *SyncResult[[]domain.Resort]
	Quality *BatchSyncResult[domain.SnowQualitySummaryLight]
}

// ResortService is the resort repository: one coordinator per entity type over a
// shared cache store and the resort API.
type ResortService struct {
	api        domain.ResortAPI
	store      domain.CacheStore
	favorites  domain.FavoriteSource
	classifier *QualityClassifier
	ranker     *RecommendationRanker
	cfg        ResortServiceConfig
	logger     logger.Logger
	metrics    *metrics.Metrics

	resortList          *Coordinator[[]domain.Resort]
	resorts             *Coordinator[domain.Resort]
	conditions          *Coordinator[[]domain.WeatherCondition]
	summaries           *Coordinator[domain.SnowQualitySummary]
	qualityBatch        *Coordinator[map[string]domain.SnowQualitySummaryLight]
	conditionsBatch     *Coordinator[map[string][]domain.WeatherCondition]
	timelines           *Coordinator[domain.Timeline]
	recommendations     *Coordinator[[]domain.Recommendation]
	bestRecommendations *Coordinator[[]domain.Recommendation]

	qualityFetcher    *BatchFetcher[domain.SnowQualitySummaryLight]
	conditionsFetcher *BatchFetcher[[]domain.WeatherCondition]
}

// NewResortService creates a new resort service with dependencies
func NewResortService(
	api domain.ResortAPI,
	store domain.CacheStore,
	favorites domain.FavoriteSource,
	config ResortServiceConfig,
	log logger.Logger,
	m *metrics.Metrics,
) *ResortService {
	cfg := config.withDefaults()
	if favorites == nil {
		favorites = domain.StaticFavorites(nil)
	}
	log = log.WithField("component", "resort_service")

	return &ResortService{
		api:        api,
		store:      store,
		favorites:  favorites,
		classifier: NewQualityClassifier(),
		ranker:     NewRecommendationRanker(domain.DefaultRecommendationRadiusKM),
		cfg:        cfg,
		logger:     log,
		metrics:    m,

		resortList:          NewCoordinator[[]domain.Resort](domain.EntityResortList, store, cfg.Now, log, m),
		resorts:             NewCoordinator[domain.Resort](domain.EntityResort, store, cfg.Now, log, m),
		conditions:          NewCoordinator[[]domain.WeatherCondition](domain.EntityConditions, store, cfg.Now, log, m),
		summaries:           NewCoordinator[domain.SnowQualitySummary](domain.EntityQualitySummary, store, cfg.Now, log, m),
		qualityBatch:        NewCoordinator[map[string]domain.SnowQualitySummaryLight](domain.EntityQualityBatch, store, cfg.Now, log, m),
		conditionsBatch:     NewCoordinator[map[string][]domain.WeatherCondition](domain.EntityConditionsBatch, store, cfg.Now, log, m),
		timelines:           NewCoordinator[domain.Timeline](domain.EntityTimeline, store, cfg.Now, log, m),
		recommendations:     NewCoordinator[[]domain.Recommendation](domain.EntityRecommendations, store, cfg.Now, log, m),
		bestRecommendations: NewCoordinator[[]domain.Recommendation](domain.EntityBestRecommendations, store, cfg.Now, log, m),

		qualityFetcher:    NewBatchFetcher[domain.SnowQualitySummaryLight]("quality", api.BatchQuality),
		conditionsFetcher: NewBatchFetcher[[]domain.WeatherCondition]("conditions", api.BatchConditions),
	}
}

// requestTimeout bounds a single upstream request for the chosen profile.
func (s *ResortService) requestTimeout(ctx context.Context, opts SyncOptions) (context.Context, context.CancelFunc) {
	profile := s.cfg.Foreground
	if opts.Background {
		profile = s.cfg.Background
	}
	return context.WithTimeout(ctx, profile.PerRequest)
}

// ListResorts returns every resort.
func (s *ResortService) ListResorts(ctx context.Context, opts SyncOptions) (*SyncResult[[]domain.Resort], error) {
	return s.resortList.Get(ctx, domain.ResortListKey, opts, func(ctx context.Context) ([]domain.Resort, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		return s.api.ListResorts(ctx)
	})
}

// GetResort returns a single resort.
func (s *ResortService) GetResort(ctx context.Context, resortID string, opts SyncOptions) (*SyncResult[domain.Resort], error) {
	id, err := requireID(resortID)
	if err != nil {
		return nil, err
	}

	return s.resorts.Get(ctx, id, opts, func(ctx context.Context) (domain.Resort, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		resort, err := s.api.GetResort(ctx, id)
		if err != nil {
			return domain.Resort{}, err
		}
		return *resort, nil
	})
}

// GetConditions returns the per-elevation conditions of a resort with the
// temperature override applied.
func (s *ResortService) GetConditions(ctx context.Context, resortID string, opts SyncOptions) (*SyncResult[[]domain.WeatherCondition], error) {
	id, err := requireID(resortID)
	if err != nil {
		return nil, err
	}

	res, err := s.conditions.Get(ctx, id, opts, func(ctx context.Context) ([]domain.WeatherCondition, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		return s.api.GetConditions(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	res.Value = s.classifier.ApplyToConditions(res.Value)
	return res, nil
}

// GetQualitySummary returns the full snow-quality summary of a resort.
func (s *ResortService) GetQualitySummary(ctx context.Context, resortID string, opts SyncOptions) (*SyncResult[domain.SnowQualitySummary], error) {
	id, err := requireID(resortID)
	if err != nil {
		return nil, err
	}

	res, err := s.summaries.Get(ctx, id, opts, func(ctx context.Context) (domain.SnowQualitySummary, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		summary, err := s.api.GetQualitySummary(ctx, id)
		if err != nil {
			return domain.SnowQualitySummary{}, err
		}
		return *summary, nil
	})
	if err != nil {
		return nil, err
	}
	res.Value = s.classifier.ApplyToSummary(res.Value)
	return res, nil
}

// GetBatchQuality returns light summaries for a set of resorts using one upstream call.
func (s *ResortService) GetBatchQuality(ctx context.Context, resortIDs []string, opts SyncOptions) (*BatchSyncResult[domain.SnowQualitySummaryLight], error) {
	ids := CanonicalizeKeys(resortIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: resort_ids is required", domain.ErrInvalidRequest)
	}

	res, err := s.qualityBatch.Get(ctx, strings.Join(ids, ","), opts, func(ctx context.Context) (map[string]domain.SnowQualitySummaryLight, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		batch, err := s.qualityFetcher.Fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(batch.Missing) > 0 {
			s.logger.Debugf("batch quality: no data for %s", strings.Join(batch.Missing, ","))
		}
		return batch.Found, nil
	})
	if err != nil {
		return nil, err
	}

	res.Value = s.classifier.ApplyToLightBatch(res.Value)
	return &BatchSyncResult[domain.SnowQualitySummaryLight]{
		SyncResult: res,
		Missing:    missingIDs(ids, res.Value),
	}, nil
}

// GetBatchConditions returns conditions for a set of resorts using one upstream call.
func (s *ResortService) GetBatchConditions(ctx context.Context, resortIDs []string, opts SyncOptions) (*BatchSyncResult[[]domain.WeatherCondition], error) {
	ids := CanonicalizeKeys(resortIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: resort_ids is required", domain.ErrInvalidRequest)
	}

	res, err := s.conditionsBatch.Get(ctx, strings.Join(ids, ","), opts, func(ctx context.Context) (map[string][]domain.WeatherCondition, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		batch, err := s.conditionsFetcher.Fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		return batch.Found, nil
	})
	if err != nil {
		return nil, err
	}

	res.Value = s.classifier.ApplyToConditionsBatch(res.Value)
	return &BatchSyncResult[[]domain.WeatherCondition]{
		SyncResult: res,
		Missing:    missingIDs(ids, res.Value),
	}, nil
}

// GetTimeline returns the conditions timeline of one elevation.
func (s *ResortService) GetTimeline(ctx context.Context, resortID, elevation string, opts SyncOptions) (*SyncResult[domain.Timeline], error) {
	id, err := requireID(resortID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(elevation) == "" {
		elevation = string(domain.ElevationMid)
	}
	level, ok := domain.ParseElevationLevel(elevation)
	if !ok {
		return nil, fmt.Errorf("%w: elevation must be one of base, mid, top", domain.ErrInvalidRequest)
	}

	res, err := s.timelines.Get(ctx, domain.TimelineKey(id, level), opts, func(ctx context.Context) (domain.Timeline, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		timeline, err := s.api.GetTimeline(ctx, id, level)
		if err != nil {
			return domain.Timeline{}, err
		}
		return *timeline, nil
	})
	if err != nil {
		return nil, err
	}
	res.Value = s.classifier.ApplyToTimeline(res.Value)
	return res, nil
}

// GetRecommendations returns ranked resorts around a location. The override can
// push a candidate below MinQuality, so filtering happens again after it.
func (s *ResortService) GetRecommendations(ctx context.Context, query domain.RecommendationQuery, opts SyncOptions) (*SyncResult[[]domain.Recommendation], error) {
	if err := query.Normalize(); err != nil {
		return nil, err
	}

	res, err := s.recommendations.Get(ctx, query.CacheKey(), opts, func(ctx context.Context) ([]domain.Recommendation, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		return s.api.Recommendations(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	res.Value = s.ranker.Rank(s.classifier.ApplyToRecommendations(res.Value), RankOptions{
		RadiusKM:   query.RadiusKM,
		Limit:      query.Limit,
		MinQuality: query.MinQuality,
	})
	return res, nil
}

// GetBestRecommendations returns the global ranking.
func (s *ResortService) GetBestRecommendations(ctx context.Context, query domain.BestRecommendationQuery, opts SyncOptions) (*SyncResult[[]domain.Recommendation], error) {
	if err := query.Normalize(); err != nil {
		return nil, err
	}

	res, err := s.bestRecommendations.Get(ctx, query.CacheKey(), opts, func(ctx context.Context) ([]domain.Recommendation, error) {
		ctx, cancel := s.requestTimeout(ctx, opts)
		defer cancel()
		return s.api.BestRecommendations(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	res.Value = s.ranker.Rank(s.classifier.ApplyToRecommendations(res.Value), RankOptions{
		Limit:      query.Limit,
		MinQuality: query.MinQuality,
	})
	return res, nil
}

// GetFavoritesOverview loads resort names and batch quality for the favorite set
// concurrently. When one side fails the overview still carries the other side,
// and the returned error joins every failure.
func (s *ResortService) GetFavoritesOverview(ctx context.Context, resortIDs []string, opts SyncOptions) (*FavoritesOverview, error) {
	ids, err := s.favoriteIDs(ctx, resortIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &FavoritesOverview{Resorts: []FavoriteResort{}}, nil
	}

	var (
		names      *SyncResult[[]domain.Resort]
		quality    *BatchSyncResult[domain.SnowQualitySummaryLight]
		namesErr   error
		qualityErr error
	)

	// Both goroutines report through their own variables so one failure never
	// cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		names, namesErr = s.ListResorts(ctx, opts)
		return nil
	})
	g.Go(func() error {
		quality, qualityErr = s.GetBatchQuality(ctx, ids, opts)
		return nil
	})
	_ = g.Wait()

	if namesErr != nil {
		namesErr = fmt.Errorf("resort names: %w", namesErr)
	}
	if qualityErr != nil {
		qualityErr = fmt.Errorf("snow quality: %w", qualityErr)
	}
	joined := errors.Join(namesErr, qualityErr)
	if names == nil && quality == nil {
		return nil, joined
	}

	overview := &FavoritesOverview{Names: names, Quality: quality}
	overview.Resorts = buildFavoriteRows(ids, names, quality)
	return overview, joined
}

func buildFavoriteRows(ids []string, names *SyncResult[[]domain.Resort], quality *BatchSyncResult[domain.SnowQualitySummaryLight]) []FavoriteResort {
	byID := make(map[string]domain.Resort)
	if names != nil {
		for _, r := range names.Value {
			byID[r.ID] = r
		}
	}

	rows := make([]FavoriteResort, 0, len(ids))
	for _, id := range ids {
		row := FavoriteResort{ResortID: id, Name: id}
		if r, ok := byID[id]; ok {
			row.Name = r.Name
			row.Country = r.Country
			row.Region = r.Region
		}
		if quality != nil {
			if q, ok := quality.Value[id]; ok {
				row.Quality = &q
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *ResortService) favoriteIDs(ctx context.Context, requested []string) ([]string, error) {
	if ids := CanonicalizeKeys(requested); len(ids) > 0 {
		return ids, nil
	}
	ids, err := s.favorites.FavoriteResortIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	return CanonicalizeKeys(ids), nil
}

// RefreshFavorites force-refreshes batch quality and conditions for the
// configured favorites under the background profile.
func (s *ResortService) RefreshFavorites(ctx context.Context) error {
	ids, err := s.favoriteIDs(ctx, nil)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.BackgroundTotal)
	defer cancel()

	opts := SyncOptions{ForceRefresh: true, Background: true}
	var qualityErr, conditionsErr error

	var g errgroup.Group
	g.Go(func() error {
		_, qualityErr = s.GetBatchQuality(ctx, ids, opts)
		return nil
	})
	g.Go(func() error {
		_, conditionsErr = s.GetBatchConditions(ctx, ids, opts)
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(qualityErr, conditionsErr); err != nil {
		return fmt.Errorf("refreshing %d favorites: %w", len(ids), err)
	}
	s.logger.Infof("refreshed %d favorite resorts", len(ids))
	return nil
}

// ClearCache drops every cached entry.
func (s *ResortService) ClearCache(ctx context.Context) error {
	var errs []error
	for _, entity := range domain.AllEntityTypes() {
		if err := s.store.DeleteAll(ctx, entity); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s: %w", entity, err))
		}
	}
	return errors.Join(errs...)
}

// PurgeExpired removes entries older than retention and returns how many were removed.
func (s *ResortService) PurgeExpired(ctx context.Context, retention time.Duration) (int, error) {
	before := s.cfg.Now().Add(-retention)

	total := 0
	var errs []error
	for _, entity := range domain.AllEntityTypes() {
		n, err := s.store.DeleteExpired(ctx, entity, before)
		if err != nil {
			errs = append(errs, fmt.Errorf("purging %s: %w", entity, err))
			continue
		}
		s.metrics.CacheEvictions(string(entity), n)
		total += n
	}
	return total, errors.Join(errs...)
}

func requireID(resortID string) (string, error) {
	id := strings.TrimSpace(resortID)
	if id == "" {
		return "", fmt.Errorf("%w: resort id is required", domain.ErrInvalidRequest)
	}
	return id, nil
}

func missingIDs[T any](ids []string, found map[string]T) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
