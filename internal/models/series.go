package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Series maps a bucket timestamp key to the bucket's sample.
// Key uniqueness is inherent to the map; insertion order is irrelevant.
type Series map[string]SentimentSample

// Point is a series entry with its parsed timestamp.
type Point struct {
	Key    string          `json:"time"`
	Time   time.Time       `json:"-"`
	Sample SentimentSample `json:"sample"`
}

var bucketLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
}

// ParseBucketKey parses the timestamp keys used by the sentiment backend:
// RFC3339, naive ISO-8601 date-times, dates, months and ISO weeks (2024-W05).
// Naive values are interpreted as UTC. ISO weeks resolve to their Monday.
func ParseBucketKey(key string) (time.Time, error) {
	if year, week, ok := splitISOWeek(key); ok {
		return isoWeekStart(year, week), nil
	}
	for _, layout := range bucketLayouts {
		if t, err := time.Parse(layout, key); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized bucket key %q", key)
}

func splitISOWeek(key string) (int, int, bool) {
	yearStr, weekStr, found := strings.Cut(key, "-W")
	if !found || len(yearStr) != 4 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, 0, false
	}
	week, err := strconv.Atoi(weekStr)
	if err != nil || week < 1 || week > 53 {
		return 0, 0, false
	}
	return year, week, true
}

// isoWeekStart returns the Monday of ISO week `week` in `year`.
// January 4th always falls in ISO week 1.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := jan4.AddDate(0, 0, 1-weekday)
	return monday.AddDate(0, 0, (week-1)*7)
}

// Points returns the series ordered by parsed timestamp ascending.
// Entries whose key cannot be parsed are skipped; ties are ordered by key.
func (s Series) Points() []Point {
	points := make([]Point, 0, len(s))
	for key, sample := range s {
		t, err := ParseBucketKey(key)
		if err != nil {
			continue
		}
		points = append(points, Point{Key: key, Time: t, Sample: sample})
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Time.Equal(points[j].Time) {
			return points[i].Time.Before(points[j].Time)
		}
		return points[i].Key < points[j].Key
	})
	return points
}

// Validate checks every key and sample in the series.
func (s Series) Validate() error {
	for key, sample := range s {
		if _, err := ParseBucketKey(key); err != nil {
			return err
		}
		if err := sample.Validate(); err != nil {
			return fmt.Errorf("bucket %s: %w", key, err)
		}
	}
	return nil
}

// Clone returns a copy of the series that shares no map storage.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
