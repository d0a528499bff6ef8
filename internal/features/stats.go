package features

import (
	"math"
	"time"

	"github.com/yourusername/propcast/internal/models"
)

// RollingPoints summarises the points column over a trailing window of games
type RollingPoints struct {
	Mean       float64
	Std        float64
	SampleSize int
}

// Mean returns the arithmetic mean of values, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStd returns the n-1 standard deviation. Fewer than two values yield 0.
func SampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// ComputeRollingPoints aggregates the given rows without padding
func ComputeRollingPoints(stats []*models.PlayerStat) RollingPoints {
	points := make([]float64, len(stats))
	for i, s := range stats {
		points[i] = float64(s.Points)
	}
	return RollingPoints{
		Mean:       Mean(points),
		Std:        SampleStd(points),
		SampleSize: len(points),
	}
}

// DaysOfRest counts calendar days between the previous game and gameDate, clipped to [0, maxDays]
func DaysOfRest(previous, gameDate time.Time, maxDays int) int {
	prev := truncateDay(previous)
	cur := truncateDay(gameDate)
	days := int(cur.Sub(prev).Hours() / 24)
	if days < 0 {
		return 0
	}
	if days > maxDays {
		return maxDays
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
