// Package analytics derives summary metrics, rule-based insights and chart
// aggregates from sentiment series. Everything here is pure and deterministic.
package analytics

import (
	"math"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// WindowSize is the number of trailing buckets in the current metrics window.
const WindowSize = 7

// Derive summarizes the last WindowSize buckets of a series against the
// WindowSize buckets before them. It returns nil for an empty series.
// A missing or zero previous window yields 0% change.
func Derive(series models.Series) *models.DerivedMetrics {
	points := series.Points()
	if len(points) == 0 {
		return nil
	}

	current := points[max(0, len(points)-WindowSize):]
	previous := points[max(0, len(points)-2*WindowSize):max(0, len(points)-WindowSize)]

	avg := meanScore(current)
	prevAvg := meanScore(previous)
	total := sumTweets(current)
	prevTotal := sumTweets(previous)

	m := &models.DerivedMetrics{
		AvgSentiment:    avg,
		SentimentChange: percentChange(avg, prevAvg),
		TotalTweets:     total,
		VolumeChange:    percentChange(float64(total), float64(prevTotal)),
		Volatility:      stdDev(current, avg),
	}

	// First encountered wins on ties.
	hi, lo := current[0], current[0]
	for _, p := range current[1:] {
		if p.Sample.NormalizedScore > hi.Sample.NormalizedScore {
			hi = p
		}
		if p.Sample.NormalizedScore < lo.Sample.NormalizedScore {
			lo = p
		}
	}
	m.MostPositiveDay = dayRef(hi)
	m.MostNegativeDay = dayRef(lo)

	return m
}

func dayRef(p models.Point) *models.DayRef {
	return &models.DayRef{
		Key:         p.Key,
		Time:        p.Time,
		Sentiment:   p.Sample.NormalizedScore,
		TotalTweets: p.Sample.TotalTweets,
	}
}

func meanScore(points []models.Point) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Sample.NormalizedScore
	}
	return sum / float64(len(points))
}

func sumTweets(points []models.Point) int {
	total := 0
	for _, p := range points {
		total += p.Sample.TotalTweets
	}
	return total
}

// stdDev is the population standard deviation of the points' scores.
func stdDev(points []models.Point, mean float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var sq float64
	for _, p := range points {
		d := p.Sample.NormalizedScore - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(points)))
}

// percentChange returns (cur-prev)/prev*100, or 0 when prev is not positive.
func percentChange(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
