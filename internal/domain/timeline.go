package domain

import "time"

// TimelinePoint is one slot of a resort's conditions timeline.
type TimelinePoint struct {
	Date               string      `json:"date"`
	TimeLabel          string      `json:"timeLabel"`
	Hour               int         `json:"hour"`
	Timestamp          time.Time   `json:"timestamp"`
	TemperatureCelsius float64     `json:"temperatureCelsius"`
	SnowfallCM         float64     `json:"snowfallCm"`
	SnowDepthCM        *float64    `json:"snowDepthCm,omitempty"`
	WindSpeedKMH       *float64    `json:"windSpeedKmh,omitempty"`
	SnowQuality        SnowQuality `json:"snowQuality"`
	QualityScore       int         `json:"qualityScore"`
	IsForecast         bool        `json:"isForecast"`
}

// Timeline is the ordered series of points for one resort elevation.
type Timeline struct {
	ResortID        string          `json:"resortId"`
	ElevationLevel  ElevationLevel  `json:"elevationLevel"`
	ElevationMeters int             `json:"elevationMeters"`
	Points          []TimelinePoint `json:"points"`
}

// TimelineKey builds the composite cache key of a timeline.
func TimelineKey(resortID string, level ElevationLevel) string {
	return resortID + ":" + string(level)
}
