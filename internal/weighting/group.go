package weighting

import (
	"fmt"
	"time"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// Blend weights for hour and 5-minute buckets that have history.
const (
	HistoricalWeight = 0.7
	CurrentWeight    = 0.3
)

// DefaultIterations is the number of 5-minute steps in an iterations response.
const DefaultIterations = 1000

// Granularity names a grouping of tweets into buckets.
type Granularity string

const (
	ByDay     Granularity = "day"
	ByWeek    Granularity = "week"
	ByMonth   Granularity = "month"
	ByHour    Granularity = "hour"
	ByFiveMin Granularity = "5min"
)

// BucketKey returns the bucket key of t for the granularity.
func BucketKey(g Granularity, t time.Time) string {
	switch g {
	case ByWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case ByMonth:
		return t.Format("2006-01")
	case ByHour:
		return t.Truncate(time.Hour).Format(TimeLayout)
	case ByFiveMin:
		return floorFiveMin(t).Format(TimeLayout)
	default:
		return t.Format(time.DateOnly)
	}
}

func floorFiveMin(t time.Time) time.Time {
	return t.Truncate(5 * time.Minute)
}

// Group summarizes tweets per bucket. Hour and 5-minute buckets blend the
// bucket's own summary with the summary of every earlier tweet.
func Group(g Granularity, tweets []models.Tweet) map[string]models.WireSample {
	sorted := Sorted(tweets)

	groups := make(map[string][]models.Tweet)
	starts := make(map[string]int) // index of the bucket's first tweet in sorted
	for i, tw := range sorted {
		key := BucketKey(g, tw.Timestamp)
		if _, ok := groups[key]; !ok {
			starts[key] = i
		}
		groups[key] = append(groups[key], tw)
	}

	blend := g == ByHour || g == ByFiveMin
	out := make(map[string]models.WireSample, len(groups))
	for key, bucket := range groups {
		current := Compute(bucket)
		if !blend || starts[key] == 0 {
			out[key] = current.Wire()
			continue
		}
		history := Compute(sorted[:starts[key]])
		out[key] = Combine(history, current)
	}
	return out
}

// Combine blends a historical summary with the current bucket's summary.
func Combine(history, current *Summary) models.WireSample {
	if history == nil {
		return current.Wire()
	}
	h, c := history.Wire(), current.Wire()
	norm := HistoricalWeight*history.NormalizedScore + CurrentWeight*current.NormalizedScore
	raw := HistoricalWeight*history.Score + CurrentWeight*current.Score
	total := history.TotalTweets + current.TotalTweets
	return models.WireSample{
		HistoricalSentiment:     &h,
		CurrentBucketSentiment:  &c,
		CombinedOverallScore:    &raw,
		CombinedNormalizedScore: &norm,
		TotalTweets:             &total,
	}
}

// Iterations walks back from the 5-minute floor of target in n 5-minute
// steps, summarizing every tweet up to each step with time decay. Steps
// before the first tweet are neutral.
func Iterations(tweets []models.Tweet, target time.Time, n int) map[string]models.WireSample {
	if n <= 0 {
		n = DefaultIterations
	}
	sorted := Sorted(tweets)
	bucket := floorFiveMin(target)

	out := make(map[string]models.WireSample, n)
	for i := 0; i < n; i++ {
		end := bucket.Add(-time.Duration(i) * 5 * time.Minute)
		s := ComputeUpTo(sorted, end)
		if s == nil {
			s = Neutral(end)
		}
		out[end.Format(TimeLayout)] = s.Wire()
	}
	return out
}
