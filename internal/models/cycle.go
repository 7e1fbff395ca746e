package models

import "time"

// SyntheticMode reports how much of the dashboard is backed by synthetic data.
type SyntheticMode string

const (
	SyntheticNone    SyntheticMode = "none"
	SyntheticPartial SyntheticMode = "partial"
	SyntheticFull    SyntheticMode = "full"
)

// Level orders modes for gauges: none=0, partial=1, full=2.
func (m SyntheticMode) Level() int {
	switch m {
	case SyntheticPartial:
		return 1
	case SyntheticFull:
		return 2
	default:
		return 0
	}
}

// ModeFor derives the synthetic mode from the number of endpoints that fell
// back out of the total refreshed.
func ModeFor(fallbacks, total int) SyntheticMode {
	switch {
	case fallbacks == 0:
		return SyntheticNone
	case fallbacks >= total:
		return SyntheticFull
	default:
		return SyntheticPartial
	}
}

// CycleRecord is the persisted summary of one applied refresh cycle.
type CycleRecord struct {
	ID                string           `json:"id"`
	Sequence          uint64           `json:"sequence"`
	StartedAt         time.Time        `json:"started_at"`
	CompletedAt       time.Time        `json:"completed_at"`
	Mode              SyntheticMode    `json:"mode"`
	FallbackEndpoints []Endpoint       `json:"fallback_endpoints"`
	Overall           *SentimentSample `json:"overall,omitempty"`
	Forced            bool             `json:"forced"` // force-fallback timer, no fetches
}

// Duration returns how long the cycle took.
func (r *CycleRecord) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
