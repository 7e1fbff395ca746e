// Package models defines the core domain entities for sentimentdash.
// These models represent per-bucket sentiment summaries, bucketed time series,
// per-endpoint fetch outcomes and the metrics derived from them.
// Samples and tweets carry built-in validation so that live and synthetic data
// can be checked the same way before they reach the dashboard state.
//
// Terminology:
//   - Sample: one bucket's sentiment summary.
//   - Series: timestamp-keyed samples at one granularity (day, week, hour, ...).
//   - Endpoint: one named backend call feeding one dashboard bucket.
package models

import (
	"errors"
	"math"
)

// DistributionTolerance is the allowed deviation of a distribution's sum from 1.0.
const DistributionTolerance = 0.01

// Distribution holds the positive/neutral/negative share of a bucket.
type Distribution struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Sum returns positive + neutral + negative.
func (d Distribution) Sum() float64 {
	return d.Positive + d.Neutral + d.Negative
}

// Normalized scales weighted counts into fractions that sum to 1.
// A zero distribution is returned unchanged.
func (d Distribution) Normalized() Distribution {
	sum := d.Sum()
	if sum <= 0 {
		return d
	}
	return Distribution{
		Positive: d.Positive / sum,
		Neutral:  d.Neutral / sum,
		Negative: d.Negative / sum,
	}
}

// Validate checks that each fraction is in [0,1] and that the fractions
// either sum to ~1 or are all zero (bucket without tweets).
func (d Distribution) Validate() error {
	for _, v := range []float64{d.Positive, d.Neutral, d.Negative} {
		if math.IsNaN(v) || v < 0.0 || v > 1.0 {
			return errors.New("distribution fractions must be between 0.0 and 1.0")
		}
	}
	sum := d.Sum()
	if sum == 0 {
		return nil
	}
	if math.Abs(sum-1.0) > DistributionTolerance {
		return errors.New("distribution fractions should approximately sum to 1.0")
	}
	return nil
}

// SentimentSample is one bucket's sentiment summary.
// Live and synthetic samples share this exact shape.
type SentimentSample struct {
	NormalizedScore float64      `json:"normalized_score"` // 0–100
	RawScore        float64      `json:"raw_score"`        // signed, roughly -100..100
	TotalTweets     int          `json:"total_tweets"`
	Distribution    Distribution `json:"distribution"`
}

// ClampScore bounds a normalized score to [0,100].
func ClampScore(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

// Validate checks that all sample fields are valid.
func (s *SentimentSample) Validate() error {
	if math.IsNaN(s.NormalizedScore) || s.NormalizedScore < 0.0 || s.NormalizedScore > 100.0 {
		return errors.New("normalized score must be between 0 and 100")
	}
	if math.IsNaN(s.RawScore) || math.IsInf(s.RawScore, 0) {
		return errors.New("raw score must be a finite number")
	}
	if s.TotalTweets < 0 {
		return errors.New("total tweets must not be negative")
	}
	return s.Distribution.Validate()
}
