package resortapi

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/powderchaser/backend/internal/domain"
)

// Defaults applied when the backend omits an optional field.
const (
	DefaultTimezone   = "UTC"
	DefaultConfidence = 0.0
	metersToFeet      = 3.28084
	kmToMiles         = 0.621371
)

// timestampLayouts are tried in order; the backend has emitted both zoned and naive times.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// MapResort converts the wire resort to the domain model, ordering elevation points base, mid, top.
func MapResort(dto resortDTO) domain.Resort {
	points := make([]domain.ElevationPoint, 0, len(dto.ElevationPoints))
	for _, p := range dto.ElevationPoints {
		level, ok := domain.ParseElevationLevel(p.Level)
		if !ok {
			continue
		}

		feet := int(math.Round(float64(p.ElevationMeters) * metersToFeet))
		if p.ElevationFeet != nil {
			feet = *p.ElevationFeet
		}

		points = append(points, domain.ElevationPoint{
			Level:           level,
			ElevationMeters: p.ElevationMeters,
			ElevationFeet:   feet,
			Latitude:        p.Latitude,
			Longitude:       p.Longitude,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Level.Order() < points[j].Level.Order()
	})

	return domain.Resort{
		ID:              dto.ResortID,
		Name:            dto.Name,
		Country:         dto.Country,
		Region:          dto.Region,
		Timezone:        stringOr(dto.Timezone, DefaultTimezone),
		ElevationPoints: points,
	}
}

// MapCondition converts one wire condition record.
func MapCondition(dto conditionDTO) domain.WeatherCondition {
	level, _ := domain.ParseElevationLevel(dto.ElevationLevel)

	return domain.WeatherCondition{
		ResortID:                 dto.ResortID,
		ElevationLevel:           level,
		Timestamp:                parseTimestamp(dto.Timestamp),
		CurrentTempCelsius:       dto.CurrentTempCelsius,
		MinTempCelsius:           dto.MinTempCelsius,
		MaxTempCelsius:           dto.MaxTempCelsius,
		Snowfall24hCM:            dto.Snowfall24hCM,
		Snowfall48hCM:            dto.Snowfall48hCM,
		Snowfall72hCM:            dto.Snowfall72hCM,
		PredictedSnow24hCM:       floatOr(dto.PredictedSnow24hCM, 0),
		PredictedSnow48hCM:       floatOr(dto.PredictedSnow48hCM, 0),
		PredictedSnow72hCM:       floatOr(dto.PredictedSnow72hCM, 0),
		HoursAboveIceThreshold:   floatOr(dto.HoursAboveIceThreshold, 0),
		HoursSinceLastFreezeThaw: dto.HoursSinceLastFreezeThaw,
		CurrentlyWarming:         boolOr(dto.CurrentlyWarming, false),
		FreshSnowCM:              floatOr(dto.FreshSnowCM, dto.Snowfall24hCM),
		SnowQuality:              parseQuality(dto.SnowQuality),
		QualityScore:             resolveScore(dto.SnowScore, dto.QualityScore),
		ConfidenceLevel:          floatOr(dto.ConfidenceLevel, DefaultConfidence),
	}
}

// MapConditions converts a list of wire condition records, filling in the resort id
// when the backend only sent it on the envelope.
func MapConditions(resortID string, dtos []conditionDTO) []domain.WeatherCondition {
	out := make([]domain.WeatherCondition, 0, len(dtos))
	for _, dto := range dtos {
		c := MapCondition(dto)
		if c.ResortID == "" {
			c.ResortID = resortID
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ElevationLevel.Order() < out[j].ElevationLevel.Order()
	})
	return out
}

// MapQualitySummary converts the full per-elevation summary.
func MapQualitySummary(dto qualitySummaryDTO) domain.SnowQualitySummary {
	elevations := make(map[domain.ElevationLevel]domain.ElevationSummary, len(dto.Elevations))
	for name, e := range dto.Elevations {
		level, ok := domain.ParseElevationLevel(name)
		if !ok {
			continue
		}
		elevations[level] = domain.ElevationSummary{
			Quality:            parseQuality(e.Quality),
			Score:              resolveScore(e.SnowScore, e.QualityScore),
			TemperatureCelsius: e.TemperatureCelsius,
			FreshSnowCM:        floatOr(e.FreshSnowCM, 0),
			Explanation:        stringOr(e.Explanation, ""),
		}
	}

	return domain.SnowQualitySummary{
		ResortID:       dto.ResortID,
		Elevations:     elevations,
		OverallQuality: parseQuality(dto.OverallQuality),
		OverallScore:   resolveScore(dto.SnowScore, dto.QualityScore),
		Explanation:    stringOr(dto.Explanation, ""),
		LastUpdated:    parseTimestamp(dto.LastUpdated),
	}
}

// MapQualitySummaryLight converts the batch-optimized summary.
func MapQualitySummaryLight(resortID string, dto qualitySummaryLightDTO) domain.SnowQualitySummaryLight {
	id := dto.ResortID
	if id == "" {
		id = resortID
	}
	return domain.SnowQualitySummaryLight{
		ResortID:           id,
		Quality:            parseQuality(dto.OverallQuality),
		Score:              resolveScore(dto.SnowScore, dto.QualityScore),
		TemperatureCelsius: dto.TemperatureCelsius,
		Explanation:        stringOr(dto.Explanation, ""),
		LastUpdated:        parseTimestamp(dto.LastUpdated),
	}
}

// MapTimeline converts a timeline response.
func MapTimeline(dto timelineResponse, requested domain.ElevationLevel) domain.Timeline {
	level, ok := domain.ParseElevationLevel(dto.ElevationLevel)
	if !ok {
		level = requested
	}

	points := make([]domain.TimelinePoint, 0, len(dto.Timeline))
	for _, p := range dto.Timeline {
		points = append(points, domain.TimelinePoint{
			Date:               p.Date,
			TimeLabel:          p.TimeLabel,
			Hour:               p.Hour,
			Timestamp:          parseTimestamp(p.Timestamp),
			TemperatureCelsius: p.TemperatureCelsius,
			SnowfallCM:         floatOr(p.SnowfallCM, 0),
			SnowDepthCM:        p.SnowDepthCM,
			WindSpeedKMH:       p.WindSpeedKMH,
			SnowQuality:        parseQuality(p.SnowQuality),
			QualityScore:       resolveScore(p.SnowScore, p.QualityScore),
			IsForecast:         boolOr(p.IsForecast, false),
		})
	}

	return domain.Timeline{
		ResortID:        dto.ResortID,
		ElevationLevel:  level,
		ElevationMeters: dto.ElevationMeters,
		Points:          points,
	}
}

// MapRecommendation converts one ranked candidate.
func MapRecommendation(dto recommendationDTO) domain.Recommendation {
	quality := parseQuality(dto.SnowQuality)

	score := 0.0
	switch {
	case dto.SnowScore != nil:
		score = math.Max(0, math.Min(100, *dto.SnowScore))
	case dto.QualityScore != nil:
		score = float64(domain.ScoreFromRaw(*dto.QualityScore))
	}

	return domain.Recommendation{
		Resort:             MapResort(dto.Resort),
		DistanceKM:         dto.DistanceKM,
		DistanceMiles:      floatOr(dto.DistanceMiles, math.Round(dto.DistanceKM*kmToMiles*10)/10),
		Quality:            quality,
		QualityScore:       score,
		DistanceScore:      floatOr(dto.DistanceScore, 0),
		CombinedScore:      floatOr(dto.CombinedScore, 0),
		FreshSnowCM:        floatOr(dto.FreshSnowCM, 0),
		CurrentTempCelsius: dto.CurrentTempCelsius,
		Reason:             stringOr(dto.Reason, ""),
	}
}

// resolveScore prefers the 0-100 score, then the rescaled raw 1-5 score, then 0.
func resolveScore(snowScore *int, raw *float64) int {
	if snowScore != nil {
		return domain.ClampScore(*snowScore)
	}
	if raw != nil {
		return domain.ScoreFromRaw(*raw)
	}
	return 0
}

func parseQuality(s *string) domain.SnowQuality {
	if s == nil {
		return domain.QualityUnknown
	}
	return domain.ParseSnowQuality(*s)
}

// parseTimestamp returns the zero time for a missing or unparseable value.
func parseTimestamp(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	raw := strings.TrimSpace(*s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func floatOr(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
