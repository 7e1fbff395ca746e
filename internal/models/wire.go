package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload marks a response body that does not match the sentiment schema.
var ErrInvalidPayload = errors.New("invalid sentiment payload")

// WireSample is the JSON shape the sentiment backend uses for one bucket.
//
// Hour and 5-minute buckets with history use the combined_* fields and nest the
// historical/current summaries instead of carrying the plain score fields.
type WireSample struct {
	Start                   *string       `json:"start,omitempty"`
	End                     *string       `json:"end,omitempty"`
	TotalTweets             *int          `json:"total_tweets,omitempty"`
	Counts                  *Distribution `json:"weighted_sentiment_counts,omitempty"`
	OverallScore            *float64      `json:"overall_weighted_sentiment_score,omitempty"`
	NormalizedScore         *float64      `json:"normalized_overall_weighted_sentiment_score,omitempty"`
	CombinedOverallScore    *float64      `json:"combined_overall_weighted_sentiment_score,omitempty"`
	CombinedNormalizedScore *float64      `json:"combined_normalized_overall_weighted_sentiment_score,omitempty"`
	HistoricalSentiment     *WireSample   `json:"historical_sentiment,omitempty"`
	CurrentBucketSentiment  *WireSample   `json:"current_bucket_sentiment,omitempty"`
}

// ToSample validates the wire shape and converts it into a SentimentSample.
// Weighted counts are normalized into fractions and the score is clamped to [0,100].
func (w WireSample) ToSample() (SentimentSample, error) {
	var s SentimentSample

	switch {
	case w.NormalizedScore != nil:
		s.NormalizedScore = *w.NormalizedScore
	case w.CombinedNormalizedScore != nil:
		s.NormalizedScore = *w.CombinedNormalizedScore
	default:
		return s, fmt.Errorf("%w: missing normalized score", ErrInvalidPayload)
	}
	s.NormalizedScore = ClampScore(s.NormalizedScore)

	switch {
	case w.OverallScore != nil:
		s.RawScore = *w.OverallScore
	case w.CombinedOverallScore != nil:
		s.RawScore = *w.CombinedOverallScore
	}

	if w.TotalTweets != nil {
		s.TotalTweets = *w.TotalTweets
	}

	counts, err := w.counts()
	if err != nil {
		return s, err
	}
	s.Distribution = counts.Normalized()

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s, nil
}

// counts returns the weighted counts, summing nested summaries when the
// bucket only carries combined values.
func (w WireSample) counts() (Distribution, error) {
	var d Distribution
	if w.Counts != nil {
		d = *w.Counts
	} else {
		for _, nested := range []*WireSample{w.HistoricalSentiment, w.CurrentBucketSentiment} {
			if nested == nil || nested.Counts == nil {
				continue
			}
			d.Positive += nested.Counts.Positive
			d.Neutral += nested.Counts.Neutral
			d.Negative += nested.Counts.Negative
		}
	}
	if d.Positive < 0 || d.Neutral < 0 || d.Negative < 0 {
		return d, fmt.Errorf("%w: negative sentiment counts", ErrInvalidPayload)
	}
	return d, nil
}

// DecodeSample decodes a single-bucket response body.
func DecodeSample(data []byte) (SentimentSample, error) {
	var w WireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return SentimentSample{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return w.ToSample()
}

// DecodeSeries decodes a timestamp-keyed response body.
func DecodeSeries(data []byte) (Series, error) {
	var raw map[string]WireSample
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	series := make(Series, len(raw))
	for key, w := range raw {
		if _, err := ParseBucketKey(key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		sample, err := w.ToSample()
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", key, err)
		}
		series[key] = sample
	}
	return series, nil
}
