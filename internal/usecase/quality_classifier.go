package usecase

import "github.com/powderchaser/backend/internal/domain"

// OverrideTemperatureCelsius is the temperature at or above which no snow can persist.
const OverrideTemperatureCelsius = 15.0

// QualityClassifier applies the client-side override on top of the
// classification the resort API computed. All methods are pure: inputs are
// never modified.
type QualityClassifier struct {
	threshold float64
}

// NewQualityClassifier creates a classifier with the fixed override threshold
func NewQualityClassifier() *QualityClassifier {
	return &QualityClassifier{threshold: OverrideTemperatureCelsius}
}

// Classify returns label unless temperatureCelsius is at or above the override
// threshold, in which case the result is always QualityHorrible.
func (c *QualityClassifier) Classify(label domain.SnowQuality, temperatureCelsius float64) domain.SnowQuality {
	if temperatureCelsius >= c.threshold {
		return domain.QualityHorrible
	}
	if label == "" {
		return domain.QualityUnknown
	}
	return label
}

// classifyOptional leaves label alone when no temperature is known.
func (c *QualityClassifier) classifyOptional(label domain.SnowQuality, temperatureCelsius *float64) domain.SnowQuality {
	if temperatureCelsius == nil {
		if label == "" {
			return domain.QualityUnknown
		}
		return label
	}
	return c.Classify(label, *temperatureCelsius)
}

// ApplyToConditions classifies every condition by its current temperature.
func (c *QualityClassifier) ApplyToConditions(conditions []domain.WeatherCondition) []domain.WeatherCondition {
	if conditions == nil {
		return nil
	}
	out := make([]domain.WeatherCondition, len(conditions))
	for i, cond := range conditions {
		cond.SnowQuality = c.Classify(cond.SnowQuality, cond.CurrentTempCelsius)
		out[i] = cond
	}
	return out
}

// ApplyToConditionsBatch classifies every resort's conditions.
func (c *QualityClassifier) ApplyToConditionsBatch(batch map[string][]domain.WeatherCondition) map[string][]domain.WeatherCondition {
	out := make(map[string][]domain.WeatherCondition, len(batch))
	for id, conditions := range batch {
		out[id] = c.ApplyToConditions(conditions)
	}
	return out
}

// ApplyToSummary classifies each elevation that reports a temperature.
func (c *QualityClassifier) ApplyToSummary(summary domain.SnowQualitySummary) domain.SnowQualitySummary {
	elevations := make(map[domain.ElevationLevel]domain.ElevationSummary, len(summary.Elevations))
	for level, e := range summary.Elevations {
		e.Quality = c.classifyOptional(e.Quality, e.TemperatureCelsius)
		elevations[level] = e
	}
	summary.Elevations = elevations
	if summary.OverallQuality == "" {
		summary.OverallQuality = domain.QualityUnknown
	}
	return summary
}

// ApplyToLight classifies a batch summary that reports a temperature.
func (c *QualityClassifier) ApplyToLight(summary domain.SnowQualitySummaryLight) domain.SnowQualitySummaryLight {
	summary.Quality = c.classifyOptional(summary.Quality, summary.TemperatureCelsius)
	return summary
}

// ApplyToLightBatch classifies every summary of a batch.
func (c *QualityClassifier) ApplyToLightBatch(batch map[string]domain.SnowQualitySummaryLight) map[string]domain.SnowQualitySummaryLight {
	out := make(map[string]domain.SnowQualitySummaryLight, len(batch))
	for id, s := range batch {
		out[id] = c.ApplyToLight(s)
	}
	return out
}

// ApplyToTimeline classifies each point by its temperature.
func (c *QualityClassifier) ApplyToTimeline(timeline domain.Timeline) domain.Timeline {
	points := make([]domain.TimelinePoint, len(timeline.Points))
	for i, p := range timeline.Points {
		p.SnowQuality = c.Classify(p.SnowQuality, p.TemperatureCelsius)
		points[i] = p
	}
	timeline.Points = points
	return timeline
}

// ApplyToRecommendations classifies candidates that report a current temperature.
func (c *QualityClassifier) ApplyToRecommendations(recs []domain.Recommendation) []domain.Recommendation {
	out := make([]domain.Recommendation, len(recs))
	for i, r := range recs {
		r.Quality = c.classifyOptional(r.Quality, r.CurrentTempCelsius)
		out[i] = r
	}
	return out
}
