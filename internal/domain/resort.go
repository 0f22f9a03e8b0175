package domain

import "strings"

// ElevationLevel identifies one of a resort's measurement points.
type ElevationLevel string

const (
	ElevationBase ElevationLevel = "base"
	ElevationMid  ElevationLevel = "mid"
	ElevationTop  ElevationLevel = "top"
)

var elevationOrder = map[ElevationLevel]int{
	ElevationBase: 0,
	ElevationMid:  1,
	ElevationTop:  2,
}

// ParseElevationLevel returns the level for s and whether it is a known level.
func ParseElevationLevel(s string) (ElevationLevel, bool) {
	level := ElevationLevel(strings.ToLower(strings.TrimSpace(s)))
	_, ok := elevationOrder[level]
	return level, ok
}

// Order returns the position of the level in base, mid, top order.
func (l ElevationLevel) Order() int {
	if o, ok := elevationOrder[l]; ok {
		return o
	}
	return len(elevationOrder)
}

// ElevationPoint is a measurement point on the mountain.
type ElevationPoint struct {
	Level           ElevationLevel `json:"level"`
	ElevationMeters int            `json:"elevationMeters"`
	ElevationFeet   int            `json:"elevationFeet"`
	Latitude        float64        `json:"latitude"`
	Longitude       float64        `json:"longitude"`
}

// Resort is a ski resort with its elevation points ordered base, mid, top.
type Resort struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Country         string           `json:"country"`
	Region          string           `json:"region"`
	Timezone        string           `json:"timezone"`
	ElevationPoints []ElevationPoint `json:"elevationPoints"`
}

// Elevation returns the point at level, if the resort has one.
func (r *Resort) Elevation(level ElevationLevel) (ElevationPoint, bool) {
	for _, p := range r.ElevationPoints {
		if p.Level == level {
			return p, true
		}
	}
	return ElevationPoint{}, false
}
