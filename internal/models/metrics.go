package models

import "time"

// DayRef points at one bucket of the current metrics window.
type DayRef struct {
	Key         string    `json:"time"`
	Time        time.Time `json:"-"`
	Sentiment   float64   `json:"sentiment"`
	TotalTweets int       `json:"total_tweets"`
}

// DerivedMetrics summarizes the trailing 7-bucket window of a daily series
// against the 7 buckets before it. It is recomputed on every refresh and
// never persisted.
type DerivedMetrics struct {
	AvgSentiment    float64 `json:"avg_sentiment"`
	SentimentChange float64 `json:"sentiment_change"` // percent vs previous window
	TotalTweets     int     `json:"total_tweets"`
	VolumeChange    float64 `json:"volume_change"` // percent vs previous window
	MostPositiveDay *DayRef `json:"most_positive_day,omitempty"`
	MostNegativeDay *DayRef `json:"most_negative_day,omitempty"`
	Volatility      float64 `json:"volatility"` // population std dev of window scores
}

// InsightType classifies an insight for display.
type InsightType string

const (
	InsightPositive InsightType = "positive"
	InsightNegative InsightType = "negative"
	InsightInfo     InsightType = "info"
	InsightWarning  InsightType = "warning"
)

// Insight is a rule-based observation derived from DerivedMetrics.
type Insight struct {
	ID          int         `json:"id"`
	Type        InsightType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

// RangeComparison contrasts two custom date ranges.
type RangeComparison struct {
	First         SentimentSample `json:"first"`
	Second        SentimentSample `json:"second"`
	ScoreDelta    float64         `json:"score_delta"`
	VolumeDelta   int             `json:"volume_delta"`
	PercentChange float64         `json:"percent_change"`
}
