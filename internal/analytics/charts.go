package analytics

import (
	"math"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// RadarPoints is how many trailing points the radar profile averages.
const RadarPoints = 5

// RadarAxis is one spoke of the radar profile, scaled to [0,1].
type RadarAxis struct {
	Subject  string  `json:"subject"`
	Value    float64 `json:"value"`
	FullMark float64 `json:"full_mark"`
}

// DistributionTotals sums the distribution shares across points.
func DistributionTotals(points []models.Point) models.Distribution {
	var d models.Distribution
	for _, p := range points {
		d.Positive += p.Sample.Distribution.Positive
		d.Neutral += p.Sample.Distribution.Neutral
		d.Negative += p.Sample.Distribution.Negative
	}
	return d
}

// Radar averages the last RadarPoints points into a five-axis profile.
// Volume is scaled by 100 tweets and capped at 1.
func Radar(points []models.Point) []RadarAxis {
	if len(points) == 0 {
		return nil
	}
	last := points[max(0, len(points)-RadarPoints):]
	n := float64(len(last))

	var score, tweets float64
	totals := DistributionTotals(last)
	for _, p := range last {
		score += p.Sample.NormalizedScore
		tweets += float64(p.Sample.TotalTweets)
	}

	return []RadarAxis{
		{Subject: "Sentiment", Value: score / n / 100, FullMark: 1},
		{Subject: "Positive", Value: totals.Positive / n, FullMark: 1},
		{Subject: "Neutral", Value: totals.Neutral / n, FullMark: 1},
		{Subject: "Negative", Value: totals.Negative / n, FullMark: 1},
		{Subject: "Volume", Value: math.Min(tweets/n/100, 1), FullMark: 1},
	}
}

// Compare contrasts two range samples. PercentChange is relative to the
// first range's score and 0 when that score is 0.
func Compare(first, second models.SentimentSample) models.RangeComparison {
	return models.RangeComparison{
		First:         first,
		Second:        second,
		ScoreDelta:    second.NormalizedScore - first.NormalizedScore,
		VolumeDelta:   second.TotalTweets - first.TotalTweets,
		PercentChange: percentChange(second.NormalizedScore, first.NormalizedScore),
	}
}
