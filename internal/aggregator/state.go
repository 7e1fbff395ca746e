package aggregator

import (
	"time"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// Status is the dashboard's coarse state. Degradation is carried by the
// synthetic mode, not by the status.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// TrendDirection classifies the instantaneous move of the overall score.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// Trend compares the latest live overall score with the previous live one.
// Percent is nil when the previous score was 0.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Previous  float64        `json:"previous"`
	Current   float64        `json:"current"`
	Percent   *float64       `json:"percent,omitempty"`
}

func computeTrend(prev, cur float64) *Trend {
	t := &Trend{Direction: TrendFlat, Previous: prev, Current: cur}
	switch {
	case cur > prev:
		t.Direction = TrendUp
	case cur < prev:
		t.Direction = TrendDown
	}
	if prev > 0 {
		pct := (cur - prev) / prev * 100
		t.Percent = &pct
	}
	return t
}

// State is a point-in-time copy of the dashboard.
type State struct {
	Status            Status                            `json:"status"`
	Mode              models.SyntheticMode              `json:"mode"`
	FallbackEndpoints []models.Endpoint                 `json:"fallback_endpoints"`
	Overall           *models.SentimentSample           `json:"overall,omitempty"`
	Buckets           map[models.Endpoint]models.Series `json:"buckets"`
	Trend             *Trend                            `json:"trend,omitempty"`
	Metrics           *models.DerivedMetrics            `json:"metrics,omitempty"`
	Insights          []models.Insight                  `json:"insights"`
	CycleID           string                            `json:"cycle_id,omitempty"`
	Sequence          uint64                            `json:"sequence"`
	UpdatedAt         time.Time                         `json:"updated_at"`

	CustomRange *models.SentimentSample `json:"custom_range,omitempty"`
	Comparison  *models.RangeComparison `json:"comparison,omitempty"`
	RangeError  string                  `json:"range_error,omitempty"`
}

// clone deep-copies the state so callers never share maps or pointers with
// the aggregator.
func (s *State) clone() State {
	c := *s

	c.FallbackEndpoints = append([]models.Endpoint(nil), s.FallbackEndpoints...)
	c.Insights = append([]models.Insight(nil), s.Insights...)

	if s.Overall != nil {
		o := *s.Overall
		c.Overall = &o
	}
	if s.Trend != nil {
		t := *s.Trend
		if s.Trend.Percent != nil {
			p := *s.Trend.Percent
			t.Percent = &p
		}
		c.Trend = &t
	}
	if s.Metrics != nil {
		m := *s.Metrics
		if s.Metrics.MostPositiveDay != nil {
			d := *s.Metrics.MostPositiveDay
			m.MostPositiveDay = &d
		}
		if s.Metrics.MostNegativeDay != nil {
			d := *s.Metrics.MostNegativeDay
			m.MostNegativeDay = &d
		}
		c.Metrics = &m
	}
	if s.CustomRange != nil {
		r := *s.CustomRange
		c.CustomRange = &r
	}
	if s.Comparison != nil {
		r := *s.Comparison
		c.Comparison = &r
	}

	c.Buckets = make(map[models.Endpoint]models.Series, len(s.Buckets))
	for e, series := range s.Buckets {
		c.Buckets[e] = series.Clone()
	}
	return c
}
