package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sentiment labels assigned by the upstream classifier.
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// Tweet is one classified tweet feeding the sentiment backend.
type Tweet struct {
	ID          string    `json:"tweet_id"`
	User        string    `json:"user"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	Sentiment   string    `json:"sentiment"`
	Probability float64   `json:"sentiment_probability"`
	Likes       Count     `json:"likes"`
	Retweets    Count     `json:"retweets"`
	Comments    Count     `json:"comments"`
}

// UnmarshalJSON accepts naive ISO-8601 timestamps as written by the scraper.
func (t *Tweet) UnmarshalJSON(data []byte) error {
	type plain Tweet
	aux := struct {
		*plain
		Timestamp string `json:"timestamp"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		return nil
	}
	ts, err := ParseBucketKey(aux.Timestamp)
	if err != nil {
		return err
	}
	t.Timestamp = ts
	return nil
}

// Validate checks that all tweet fields are valid.
func (t *Tweet) Validate() error {
	if t.ID == "" {
		return errors.New("tweet ID must not be empty")
	}
	if t.Timestamp.IsZero() {
		return errors.New("tweet timestamp must be set")
	}
	switch t.Sentiment {
	case LabelPositive, LabelNeutral, LabelNegative:
	default:
		return errors.New("sentiment must be 'positive', 'neutral' or 'negative'")
	}
	if t.Probability < 0.0 || t.Probability > 1.0 {
		return errors.New("sentiment probability must be between 0.0 and 1.0")
	}
	return nil
}

// Count is an engagement counter. Scraped exports encode counters as strings
// ("12", "1.2K", "3M"); unparseable values decode as zero.
type Count int64

// UnmarshalJSON accepts JSON numbers and scraped counter strings.
func (c *Count) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*c = parseCount(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*c = 0
		return nil
	}
	*c = parseCount(s)
	return nil
}

func parseCount(s string) Count {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	mult := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		mult, s = 1e3, s[:len(s)-1]
	case "M":
		mult, s = 1e6, s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return Count(math.Round(v * mult))
}

// UserLikes is a user's total likes across stored tweets.
type UserLikes struct {
	User       string `json:"user"`
	TotalLikes int64  `json:"total_likes"`
}
