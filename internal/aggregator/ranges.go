package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/rewired-gh/sentimentdash/internal/analytics"
	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/models"
)

// Inline error messages shown for failed custom range queries.
const (
	rangeErrorMessage   = "Failed to fetch custom date range data."
	compareErrorMessage = "Failed to fetch comparison data."
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("range end is before start")

// RangeError is returned by failed range queries. Message is the inline
// error stored on the dashboard for this failure.
type RangeError struct {
	Message string
	Err     error
}

func (e *RangeError) Error() string { return e.Message + ": " + e.Err.Error() }

func (e *RangeError) Unwrap() error { return e.Err }

// QueryRange fetches the aggregate sample for [start, end] and stores it as
// the custom range. Failures are kept as a dismissible inline error and never
// touch the refreshed buckets.
func (a *Aggregator) QueryRange(ctx context.Context, start, end time.Time) (models.SentimentSample, error) {
	if end.Before(start) {
		return models.SentimentSample{}, a.rangeFailed(rangeErrorMessage, ErrInvalidRange)
	}

	sample, err := a.source.FetchRange(ctx, start, end)
	if err != nil {
		logger.Warn("Custom range %s..%s failed: %v", start.Format(time.DateOnly), end.Format(time.DateOnly), err)
		return models.SentimentSample{}, a.rangeFailed(rangeErrorMessage, err)
	}

	a.mu.Lock()
	a.state.CustomRange = &sample
	a.state.RangeError = ""
	a.mu.Unlock()
	return sample, nil
}

// SelectDay queries the single day containing day.
func (a *Aggregator) SelectDay(ctx context.Context, day time.Time) (models.SentimentSample, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return a.QueryRange(ctx, start, start.AddDate(0, 0, 1))
}

// Range is a closed date interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// CompareRanges fetches both ranges concurrently and stores their comparison.
func (a *Aggregator) CompareRanges(ctx context.Context, first, second Range) (models.RangeComparison, error) {
	if first.End.Before(first.Start) || second.End.Before(second.Start) {
		return models.RangeComparison{}, a.rangeFailed(compareErrorMessage, ErrInvalidRange)
	}

	var firstSample, secondSample models.SentimentSample
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		s, err := a.source.FetchRange(ctx, first.Start, first.End)
		if err != nil {
			return fmt.Errorf("first range: %w", err)
		}
		firstSample = s
		return nil
	})
	p.Go(func(ctx context.Context) error {
		s, err := a.source.FetchRange(ctx, second.Start, second.End)
		if err != nil {
			return fmt.Errorf("second range: %w", err)
		}
		secondSample = s
		return nil
	})
	if err := p.Wait(); err != nil {
		logger.Warn("Range comparison failed: %v", err)
		return models.RangeComparison{}, a.rangeFailed(compareErrorMessage, err)
	}

	cmp := analytics.Compare(firstSample, secondSample)
	a.mu.Lock()
	a.state.Comparison = &cmp
	a.state.RangeError = ""
	a.mu.Unlock()
	return cmp, nil
}

// DismissError clears the inline range error.
func (a *Aggregator) DismissError() {
	a.mu.Lock()
	a.state.RangeError = ""
	a.mu.Unlock()
}

func (a *Aggregator) rangeFailed(msg string, err error) error {
	a.mu.Lock()
	a.state.RangeError = msg
	a.mu.Unlock()
	return &RangeError{Message: msg, Err: err}
}
