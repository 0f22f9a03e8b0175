package domain

import "time"

// WeatherCondition is the measured and predicted weather at one resort elevation,
// together with the classification computed upstream.
type WeatherCondition struct {
	ResortID       string         `json:"resortId"`
	ElevationLevel ElevationLevel `json:"elevationLevel"`
	Timestamp      time.Time      `json:"timestamp"`

	CurrentTempCelsius float64 `json:"currentTempCelsius"`
	MinTempCelsius     float64 `json:"minTempCelsius"`
	MaxTempCelsius     float64 `json:"maxTempCelsius"`

	Snowfall24hCM float64 `json:"snowfall24hCm"`
	Snowfall48hCM float64 `json:"snowfall48hCm"`
	Snowfall72hCM float64 `json:"snowfall72hCm"`

	PredictedSnow24hCM float64 `json:"predictedSnow24hCm"`
	PredictedSnow48hCM float64 `json:"predictedSnow48hCm"`
	PredictedSnow72hCM float64 `json:"predictedSnow72hCm"`

	HoursAboveIceThreshold   float64  `json:"hoursAboveIceThreshold"`
	HoursSinceLastFreezeThaw *float64 `json:"hoursSinceLastFreezeThaw,omitempty"`
	CurrentlyWarming         bool     `json:"currentlyWarming"`
	FreshSnowCM              float64  `json:"freshSnowCm"`

	SnowQuality     SnowQuality `json:"snowQuality"`
	QualityScore    int         `json:"qualityScore"` // 0-100
	ConfidenceLevel float64     `json:"confidenceLevel"`
}
