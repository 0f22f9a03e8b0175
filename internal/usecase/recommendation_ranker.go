package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/powderchaser/backend/internal/domain"
)

// Combined score weights
const (
	qualityWeight  = 0.7
	distanceWeight = 0.3
)

// RankOptions controls filtering and truncation around the sort.
type RankOptions struct {
	RadiusKM   float64
	Limit      int
	MinQuality domain.SnowQuality
}

// RecommendationRanker orders candidate resorts deterministically.
type RecommendationRanker struct {
	defaultRadiusKM float64
}

// NewRecommendationRanker creates a ranker. radiusKM is the distance at which the
// distance score reaches zero when a query carries no radius.
func NewRecommendationRanker(radiusKM float64) *RecommendationRanker {
	if radiusKM <= 0 {
		radiusKM = domain.DefaultRecommendationRadiusKM
	}
	return &RecommendationRanker{defaultRadiusKM: radiusKM}
}

// Less is the ranking order: better quality first, then more fresh snow, then
// shorter distance. Unknown quality always sorts last.
func Less(a, b domain.Recommendation) bool {
	if sa, sb := a.Quality.Severity(), b.Quality.Severity(); sa != sb {
		return sa < sb
	}
	if a.FreshSnowCM != b.FreshSnowCM {
		return a.FreshSnowCM > b.FreshSnowCM
	}
	return a.DistanceKM < b.DistanceKM
}

// Rank returns a new, stably sorted slice. Candidates below MinQuality are
// dropped and the result is cut to Limit when Limit is positive.
func (r *RecommendationRanker) Rank(recs []domain.Recommendation, opts RankOptions) []domain.Recommendation {
	radius := opts.RadiusKM
	if radius <= 0 {
		radius = r.defaultRadiusKM
	}

	out := make([]domain.Recommendation, 0, len(recs))
	for _, rec := range recs {
		rec.Quality = domain.ParseSnowQuality(string(rec.Quality))
		if !rec.Quality.AtLeast(opts.MinQuality) {
			continue
		}
		out = append(out, r.annotate(rec, radius))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// annotate fills scores and reason the backend left empty.
func (r *RecommendationRanker) annotate(rec domain.Recommendation, radiusKM float64) domain.Recommendation {
	if rec.DistanceScore == 0 {
		rec.DistanceScore = DistanceScore(rec.DistanceKM, radiusKM)
	}
	if rec.CombinedScore == 0 {
		quality := rec.QualityScore
		if quality == 0 {
			quality = rec.Quality.NominalScore()
		}
		rec.CombinedScore = math.Round((qualityWeight*quality+distanceWeight*rec.DistanceScore)*10) / 10
	}
	if rec.Reason == "" {
		rec.Reason = buildReason(rec)
	}
	return rec
}

// DistanceScore maps a distance onto 0-100, 100 being on the doorstep and 0 at or past radiusKM.
func DistanceScore(distanceKM, radiusKM float64) float64 {
	if radiusKM <= 0 {
		return 0
	}
	score := 100 * (1 - distanceKM/radiusKM)
	return math.Round(math.Max(0, math.Min(100, score))*10) / 10
}

func buildReason(rec domain.Recommendation) string {
	var parts []string
	if rec.Quality == domain.QualityUnknown || rec.Quality == "" {
		parts = append(parts, "Snow quality unknown")
	} else {
		parts = append(parts, strings.ToUpper(string(rec.Quality[:1]))+string(rec.Quality[1:])+" snow")
	}
	if rec.FreshSnowCM > 0 {
		parts = append(parts, fmt.Sprintf("%.0f cm fresh", rec.FreshSnowCM))
	}
	parts = append(parts, fmt.Sprintf("%.0f km away", rec.DistanceKM))
	return strings.Join(parts, ", ")
}
