package resortapi

// Wire shapes of the resort API. Field names follow the backend's snake_case
// convention; optional fields are pointers so the mapper can tell "absent"
// from "zero" and apply an explicit default.

type elevationPointDTO struct {
	Level           string  `json:"level"`
	ElevationMeters int     `json:"elevation_meters"`
	ElevationFeet   *int    `json:"elevation_feet"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
}

type resortDTO struct {
	ResortID        string              `json:"resort_id"`
	Name            string              `json:"name"`
	Country         string              `json:"country"`
	Region          string              `json:"region"`
	Timezone        *string             `json:"timezone"`
	ElevationPoints []elevationPointDTO `json:"elevation_points"`
}

type resortListResponse struct {
	Resorts []resortDTO `json:"resorts"`
}

type conditionDTO struct {
	ResortID       string  `json:"resort_id"`
	ElevationLevel string  `json:"elevation_level"`
	Timestamp      *string `json:"timestamp"`

	CurrentTempCelsius float64 `json:"current_temp_celsius"`
	MinTempCelsius     float64 `json:"min_temp_celsius"`
	MaxTempCelsius     float64 `json:"max_temp_celsius"`

	Snowfall24hCM float64 `json:"snowfall_24h_cm"`
	Snowfall48hCM float64 `json:"snowfall_48h_cm"`
	Snowfall72hCM float64 `json:"snowfall_72h_cm"`

	PredictedSnow24hCM *float64 `json:"predicted_snow_24h_cm"`
	PredictedSnow48hCM *float64 `json:"predicted_snow_48h_cm"`
	PredictedSnow72hCM *float64 `json:"predicted_snow_72h_cm"`

	HoursAboveIceThreshold   *float64 `json:"hours_above_ice_threshold"`
	HoursSinceLastFreezeThaw *float64 `json:"hours_since_last_freeze_thaw"`
	CurrentlyWarming         *bool    `json:"currently_warming"`
	FreshSnowCM              *float64 `json:"fresh_snow_cm"`

	SnowQuality     *string  `json:"snow_quality"`
	QualityScore    *float64 `json:"quality_score"` // raw 1-5
	SnowScore       *int     `json:"snow_score"`    // 0-100
	ConfidenceLevel *float64 `json:"confidence_level"`
}

type conditionsResponse struct {
	ResortID   string         `json:"resort_id"`
	Conditions []conditionDTO `json:"conditions"`
}

type batchConditionsEntry struct {
	Conditions []conditionDTO `json:"conditions"`
	Error      *string        `json:"error"`
}

type batchConditionsResponse struct {
	Results     map[string]batchConditionsEntry `json:"results"`
	ResortCount *int                            `json:"resort_count"`
}

type elevationSummaryDTO struct {
	Quality            *string  `json:"quality"`
	SnowScore          *int     `json:"snow_score"`
	QualityScore       *float64 `json:"quality_score"`
	TemperatureCelsius *float64 `json:"temperature_c"`
	FreshSnowCM        *float64 `json:"fresh_snow_cm"`
	Explanation        *string  `json:"explanation"`
}

type qualitySummaryDTO struct {
	ResortID       string                         `json:"resort_id"`
	Elevations     map[string]elevationSummaryDTO `json:"elevations"`
	OverallQuality *string                        `json:"overall_quality"`
	SnowScore      *int                           `json:"snow_score"`
	QualityScore   *float64                       `json:"quality_score"`
	Explanation    *string                        `json:"explanation"`
	LastUpdated    *string                        `json:"last_updated"`
}

type qualitySummaryLightDTO struct {
	ResortID           string   `json:"resort_id"`
	OverallQuality     *string  `json:"overall_quality"`
	SnowScore          *int     `json:"snow_score"`
	QualityScore       *float64 `json:"quality_score"`
	TemperatureCelsius *float64 `json:"temperature_c"`
	Explanation        *string  `json:"explanation"`
	LastUpdated        *string  `json:"last_updated"`
}

type batchQualityResponse struct {
	Results map[string]qualitySummaryLightDTO `json:"results"`
	Count   *int                              `json:"count"`
}

type timelinePointDTO struct {
	Date               string   `json:"date"`
	TimeLabel          string   `json:"time_label"`
	Hour               int      `json:"hour"`
	Timestamp          *string  `json:"timestamp"`
	TemperatureCelsius float64  `json:"temperature_c"`
	SnowfallCM         *float64 `json:"snowfall_cm"`
	SnowDepthCM        *float64 `json:"snow_depth_cm"`
	WindSpeedKMH       *float64 `json:"wind_speed_kmh"`
	SnowQuality        *string  `json:"snow_quality"`
	QualityScore       *float64 `json:"quality_score"`
	SnowScore          *int     `json:"snow_score"`
	IsForecast         *bool    `json:"is_forecast"`
}

type timelineResponse struct {
	ResortID        string             `json:"resort_id"`
	ElevationLevel  string             `json:"elevation_level"`
	ElevationMeters int                `json:"elevation_meters"`
	Timeline        []timelinePointDTO `json:"timeline"`
}

type recommendationDTO struct {
	Resort             resortDTO `json:"resort"`
	DistanceKM         float64   `json:"distance_km"`
	DistanceMiles      *float64  `json:"distance_miles"`
	SnowQuality        *string   `json:"snow_quality"`
	SnowScore          *float64  `json:"snow_score"`
	QualityScore       *float64  `json:"quality_score"`
	DistanceScore      *float64  `json:"distance_score"`
	CombinedScore      *float64  `json:"combined_score"`
	FreshSnowCM        *float64  `json:"fresh_snow_cm"`
	CurrentTempCelsius *float64  `json:"current_temp_celsius"`
	Reason             *string   `json:"reason"`
}

type recommendationsResponse struct {
	Recommendations []recommendationDTO `json:"recommendations"`
}
