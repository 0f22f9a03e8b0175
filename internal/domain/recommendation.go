package domain

import "fmt"

// Recommendation is a candidate resort annotated for ranking.
type Recommendation struct {
	Resort             Resort      `json:"resort"`
	DistanceKM         float64     `json:"distanceKm"`
	DistanceMiles      float64     `json:"distanceMiles"`
	Quality            SnowQuality `json:"quality"`
	QualityScore       float64     `json:"qualityScore"`
	DistanceScore      float64     `json:"distanceScore"`
	CombinedScore      float64     `json:"combinedScore"`
	FreshSnowCM        float64     `json:"freshSnowCm"`
	CurrentTempCelsius *float64    `json:"currentTempCelsius,omitempty"`
	Reason             string      `json:"reason"`
}

// RecommendationQuery is a location-based recommendation request.
type RecommendationQuery struct {
	Latitude   float64
	Longitude  float64
	RadiusKM   float64
	Limit      int
	MinQuality SnowQuality
}

// BestRecommendationQuery is a location-independent recommendation request.
type BestRecommendationQuery struct {
	Limit      int
	MinQuality SnowQuality
}

const (
	DefaultRecommendationRadiusKM = 200.0
	DefaultRecommendationLimit    = 10
	MaxRecommendationLimit        = 50
)

// Normalize applies defaults and checks bounds.
func (q *RecommendationQuery) Normalize() error {
	if q.Latitude < -90 || q.Latitude > 90 {
		return fmt.Errorf("%w: lat must be within [-90, 90]", ErrInvalidRequest)
	}
	if q.Longitude < -180 || q.Longitude > 180 {
		return fmt.Errorf("%w: lng must be within [-180, 180]", ErrInvalidRequest)
	}
	if q.RadiusKM < 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidRequest)
	}
	if q.RadiusKM == 0 {
		q.RadiusKM = DefaultRecommendationRadiusKM
	}
	limit, err := normalizeLimit(q.Limit)
	if err != nil {
		return err
	}
	q.Limit = limit
	return nil
}

// CacheKey canonicalizes the query. Coordinates are rounded to two decimals (about 1 km).
func (q RecommendationQuery) CacheKey() string {
	return fmt.Sprintf("%.2f,%.2f,%.0f,%d,%s", q.Latitude, q.Longitude, q.RadiusKM, q.Limit, q.MinQuality)
}

// Normalize applies defaults and checks bounds.
func (q *BestRecommendationQuery) Normalize() error {
	limit, err := normalizeLimit(q.Limit)
	if err != nil {
		return err
	}
	q.Limit = limit
	return nil
}

// CacheKey canonicalizes the query.
func (q BestRecommendationQuery) CacheKey() string {
	return fmt.Sprintf("%d,%s", q.Limit, q.MinQuality)
}

func normalizeLimit(limit int) (int, error) {
	if limit < 0 || limit > MaxRecommendationLimit {
		return 0, fmt.Errorf("%w: limit must be within [1, %d]", ErrInvalidRequest, MaxRecommendationLimit)
	}
	if limit == 0 {
		return DefaultRecommendationLimit, nil
	}
	return limit, nil
}
