package domain

import "time"

// ElevationSummary is the classification of a single elevation.
type ElevationSummary struct {
	Quality            SnowQuality `json:"quality"`
	Score              int         `json:"score"`
	TemperatureCelsius *float64    `json:"temperatureCelsius,omitempty"`
	FreshSnowCM        float64     `json:"freshSnowCm"`
	Explanation        string      `json:"explanation,omitempty"`
}

// SnowQualitySummary is the full per-elevation quality report for a resort.
type SnowQualitySummary struct {
	ResortID       string                              `json:"resortId"`
	Elevations     map[ElevationLevel]ElevationSummary `json:"elevations"`
	OverallQuality SnowQuality                         `json:"overallQuality"`
	OverallScore   int                                 `json:"overallScore"`
	Explanation    string                              `json:"explanation"`
	LastUpdated    time.Time                           `json:"lastUpdated"`
}

// SnowQualitySummaryLight is the batch-optimized single classification for a resort.
type SnowQualitySummaryLight struct {
	ResortID           string      `json:"resortId"`
	Quality            SnowQuality `json:"quality"`
	Score              int         `json:"score"`
	TemperatureCelsius *float64    `json:"temperatureCelsius,omitempty"`
	Explanation        string      `json:"explanation"`
	LastUpdated        time.Time   `json:"lastUpdated"`
}
