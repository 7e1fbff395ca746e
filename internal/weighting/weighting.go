// Package weighting computes time-weighted sentiment summaries from classified
// tweets. Later tweets weigh more: each tweet's weight is the fraction of the
// covered time span elapsed when it was posted, so the earliest tweet counts 0
// and the latest counts 1.
//
// The normalized score maps the weighted score onto 0..100 using the
// theoretical extremes ±(n-1)/2 for n tweets, clamped because late-heavy
// weighting can exceed them. A single tweet is neutral (50).
package weighting

import (
	"sort"
	"time"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// TimeLayout formats bucket keys and summary bounds (naive ISO-8601).
const TimeLayout = "2006-01-02T15:04:05.999999"

var labelValue = map[string]float64{
	models.LabelPositive: 1,
	models.LabelNeutral:  0,
	models.LabelNegative: -1,
}

// Summary is the weighted sentiment of a set of tweets.
type Summary struct {
	Start           *time.Time
	End             time.Time
	TotalTweets     int
	Counts          models.Distribution // weighted, not normalized
	Score           float64
	NormalizedScore float64
}

// Wire converts the summary into the backend's JSON shape.
func (s *Summary) Wire() models.WireSample {
	w := models.WireSample{
		TotalTweets:     intPtr(s.TotalTweets),
		Counts:          &models.Distribution{Positive: s.Counts.Positive, Neutral: s.Counts.Neutral, Negative: s.Counts.Negative},
		OverallScore:    floatPtr(s.Score),
		NormalizedScore: floatPtr(s.NormalizedScore),
		End:             strPtr(s.End.Format(TimeLayout)),
	}
	if s.Start != nil {
		w.Start = strPtr(s.Start.Format(TimeLayout))
	}
	return w
}

// Sorted returns a copy of tweets ordered by timestamp, oldest first.
func Sorted(tweets []models.Tweet) []models.Tweet {
	out := append([]models.Tweet(nil), tweets...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Compute weights tweets across the span from the earliest to the latest.
// It returns nil for no tweets.
func Compute(tweets []models.Tweet) *Summary {
	if len(tweets) == 0 {
		return nil
	}
	sorted := Sorted(tweets)
	start := sorted[0].Timestamp
	return summarize(sorted, start, sorted[len(sorted)-1].Timestamp)
}

// ComputeUpTo weights the tweets posted at or before cutoff across the span
// from the earliest of them to cutoff. tweets must be sorted. It returns nil
// when no tweet is old enough.
func ComputeUpTo(sorted []models.Tweet, cutoff time.Time) *Summary {
	n := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].Timestamp.After(cutoff)
	})
	if n == 0 {
		return nil
	}
	relevant := sorted[:n]
	earliest := relevant[0].Timestamp
	if !cutoff.After(earliest) {
		return Compute(relevant)
	}
	return summarize(relevant, earliest, cutoff)
}

// summarize weights sorted tweets over [start, end].
func summarize(sorted []models.Tweet, start, end time.Time) *Summary {
	span := end.Sub(start).Seconds()

	s := &Summary{
		Start:       &start,
		End:         end,
		TotalTweets: len(sorted),
	}
	for _, tw := range sorted {
		weight := 1.0
		if span > 0 {
			weight = tw.Timestamp.Sub(start).Seconds() / span
		}
		switch tw.Sentiment {
		case models.LabelPositive:
			s.Counts.Positive += weight
		case models.LabelNegative:
			s.Counts.Negative += weight
		default:
			s.Counts.Neutral += weight
		}
		s.Score += labelValue[tw.Sentiment] * tw.Probability * weight
	}
	s.NormalizedScore = models.ClampScore(Normalize(s.Score, len(sorted)))
	return s
}

// Normalize maps a weighted score of n tweets onto 0..100.
func Normalize(score float64, n int) float64 {
	if n <= 1 {
		return 50
	}
	half := float64(n-1) / 2
	return (score + half) / (2 * half) * 100
}

// Neutral is the summary used for iteration steps without tweets.
func Neutral(end time.Time) *Summary {
	return &Summary{End: end, NormalizedScore: 50}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
