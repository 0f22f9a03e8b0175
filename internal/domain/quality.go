package domain

import (
	"math"
	"strings"
)

// SnowQuality is the discrete snow-quality category reported for a resort or elevation.
type SnowQuality string

const (
	QualityExcellent SnowQuality = "excellent"
	QualityGood      SnowQuality = "good"
	QualityFair      SnowQuality = "fair"
	QualityPoor      SnowQuality = "poor"
	QualitySlushy    SnowQuality = "slushy"
	QualityBad       SnowQuality = "bad"
	QualityHorrible  SnowQuality = "horrible"
	QualityUnknown   SnowQuality = "unknown"
)

// qualitySeverity orders categories best-first. Unknown is absent and sorts after all of them.
var qualitySeverity = map[SnowQuality]int{
	QualityExcellent: 0,
	QualityGood:      1,
	QualityFair:      2,
	QualityPoor:      3,
	QualitySlushy:    4,
	QualityBad:       5,
	QualityHorrible:  6,
}

// qualityScores is the nominal 0-100 score of each category, used when no numeric score is supplied.
var qualityScores = map[SnowQuality]float64{
	QualityExcellent: 100,
	QualityGood:      80,
	QualityFair:      60,
	QualityPoor:      40,
	QualitySlushy:    30,
	QualityBad:       20,
	QualityHorrible:  0,
}

// ParseSnowQuality maps a wire string to a category. Anything unrecognized is QualityUnknown.
func ParseSnowQuality(s string) SnowQuality {
	q := SnowQuality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := qualitySeverity[q]; ok {
		return q
	}
	return QualityUnknown
}

// Severity returns the rank of q, 0 being the best category.
func (q SnowQuality) Severity() int {
	if s, ok := qualitySeverity[q]; ok {
		return s
	}
	return len(qualitySeverity)
}

// NominalScore returns the category's 0-100 score.
func (q SnowQuality) NominalScore() float64 {
	return qualityScores[q]
}

// AtLeast reports whether q is as good as or better than min. Unknown never qualifies
// unless min is itself unknown or empty.
func (q SnowQuality) AtLeast(min SnowQuality) bool {
	if min == "" || min == QualityUnknown {
		return true
	}
	return q.Severity() <= min.Severity()
}

// ScoreFromRaw linearly rescales a raw 1-5 quality score onto the 0-100 band,
// rounding to the nearest integer and clamping to [0, 100].
func ScoreFromRaw(raw float64) int {
	return ClampScore(int(math.Round((raw - 1) * 25)))
}

// ClampScore bounds a 0-100 score.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
