// Package aggregator refreshes every sentiment endpoint concurrently, swaps in
// synthetic data for endpoints that fail, and publishes the combined result as
// one consistent dashboard state.
//
// Each refresh cycle takes a sequence number when it starts. Its settled
// results are applied in a single locked transition, and a cycle that settles
// after a newer cycle was already applied is discarded, so buckets from two
// overlapping cycles never interleave.
//
// Run drives the schedule: an initial refresh after a short delay, a refresh
// on every interval tick or manual trigger, and a one-shot timer that fills the
// whole dashboard with synthetic data if nothing has been applied in time.
package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/rewired-gh/sentimentdash/internal/analytics"
	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/metrics"
	"github.com/rewired-gh/sentimentdash/internal/mockdata"
	"github.com/rewired-gh/sentimentdash/internal/models"
)

// ErrStaleCycle is returned by Refresh when a newer cycle was applied first.
var ErrStaleCycle = errors.New("refresh cycle superseded by a newer cycle")

// Source fetches live sentiment data. *sentiment.Client implements it.
type Source interface {
	Fetch(ctx context.Context, e models.Endpoint, now time.Time) (models.FetchOutcome, error)
	FetchRange(ctx context.Context, start, end time.Time) (models.SentimentSample, error)
}

// CycleRecorder persists applied cycles. *storage.Storage implements it.
type CycleRecorder interface {
	RecordCycle(rec *models.CycleRecord) error
}

// Notifier is told about synthetic-mode transitions. *telegram.Client implements it.
type Notifier interface {
	SendDegraded(mode models.SyntheticMode, endpoints []models.Endpoint) error
	SendRecovery(degradedCycles int) error
	SendInsights(overall *models.SentimentSample, insights []models.Insight) error
}

// Options configures an Aggregator. Source and Mock are required.
type Options struct {
	Source          Source
	Mock            *mockdata.Generator
	Metrics         *metrics.Metrics
	Recorder        CycleRecorder
	Notifier        Notifier
	SendInsights    bool
	RefreshInterval time.Duration
	FallbackAfter   time.Duration
	InitialDelay    time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Aggregator owns the dashboard state.
type Aggregator struct {
	source   Source
	mock     *mockdata.Generator
	metrics  *metrics.Metrics
	recorder CycleRecorder
	notifier Notifier

	sendInsights    bool
	refreshInterval time.Duration
	fallbackAfter   time.Duration
	initialDelay    time.Duration
	now             func() time.Time

	issued  atomic.Uint64
	trigger chan struct{}

	mu             sync.RWMutex
	state          State
	applied        uint64
	lastLive       *float64
	degradedCycles int
}

// New creates an Aggregator in the loading state.
func New(opts Options) *Aggregator {
	a := &Aggregator{
		source:          opts.Source,
		mock:            opts.Mock,
		metrics:         opts.Metrics,
		recorder:        opts.Recorder,
		notifier:        opts.Notifier,
		sendInsights:    opts.SendInsights,
		refreshInterval: opts.RefreshInterval,
		fallbackAfter:   opts.FallbackAfter,
		initialDelay:    opts.InitialDelay,
		now:             opts.Now,
		trigger:         make(chan struct{}, 1),
		state: State{
			Status:  StatusLoading,
			Mode:    models.SyntheticNone,
			Buckets: make(map[models.Endpoint]models.Series),
		},
	}
	if a.mock == nil {
		a.mock = mockdata.New(0)
	}
	if a.refreshInterval <= 0 {
		a.refreshInterval = 5 * time.Minute
	}
	if a.fallbackAfter <= 0 {
		a.fallbackAfter = 30 * time.Second
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Snapshot returns a deep copy of the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.clone()
}

// Status returns the coarse dashboard state.
func (a *Aggregator) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Status
}

// Trigger requests an asynchronous refresh from Run. Requests made while one
// is already pending are coalesced.
func (a *Aggregator) Trigger() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

// cycle is one refresh's settled results, waiting to be applied.
type cycle struct {
	id       string
	seq      uint64
	started  time.Time
	outcomes []models.FetchOutcome
	forced   bool
}

// Refresh fetches every endpoint concurrently, waits for all of them to
// settle and applies the results as one transition. Failed endpoints are
// replaced with synthetic data; a failure never cancels its siblings.
// It returns ErrStaleCycle when a newer cycle has already been applied and
// the context error if ctx ends before the cycle settles.
func (a *Aggregator) Refresh(ctx context.Context) error {
	c := cycle{
		id:      uuid.New().String(),
		seq:     a.issued.Add(1),
		started: a.now(),
	}
	logger.Debug("Starting refresh cycle %d (%s)", c.seq, c.id)

	endpoints := models.Endpoints()
	c.outcomes = make([]models.FetchOutcome, len(endpoints))

	var wg conc.WaitGroup
	for i, e := range endpoints {
		wg.Go(func() {
			c.outcomes[i] = a.fetchOne(ctx, e, c.started)
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !a.apply(c) {
		logger.Info("Discarded stale refresh cycle %d", c.seq)
		a.metrics.ObserveStaleCycle()
		return ErrStaleCycle
	}
	return nil
}

// fetchOne fetches a single endpoint, falling back to synthetic data on any
// transport or schema failure.
func (a *Aggregator) fetchOne(ctx context.Context, e models.Endpoint, now time.Time) models.FetchOutcome {
	out, err := a.source.Fetch(ctx, e, now)
	if err == nil {
		return out
	}
	if ctx.Err() == nil {
		logger.Warn("Failed to fetch %s, using mock data: %v", e, err)
	}
	a.metrics.ObserveFallback(string(e))
	return a.mock.Outcome(e, now, err)
}

// ForceFallback fills every bucket with synthetic data if no cycle has been
// applied yet. It does not consume a sequence number, so a live cycle that
// settles later still replaces the synthetic data.
func (a *Aggregator) ForceFallback() bool {
	a.mu.RLock()
	loading := a.applied == 0 && a.state.Status == StatusLoading
	a.mu.RUnlock()
	if !loading {
		return false
	}

	now := a.now()
	c := cycle{id: uuid.New().String(), started: now, forced: true}
	for _, e := range models.Endpoints() {
		c.outcomes = append(c.outcomes, a.mock.Outcome(e, now, nil))
	}

	if !a.apply(c) {
		return false
	}
	logger.Warn("Initial load taking too long, loaded mock data for all endpoints")
	return true
}

// apply merges a settled cycle into the state under the lock and then runs
// side effects outside it. It reports whether the cycle was applied.
func (a *Aggregator) apply(c cycle) bool {
	a.mu.Lock()

	if c.forced {
		if a.applied != 0 || a.state.Status != StatusLoading {
			a.mu.Unlock()
			return false
		}
	} else {
		if c.seq <= a.applied {
			a.mu.Unlock()
			return false
		}
		a.applied = c.seq
	}

	buckets := make(map[models.Endpoint]models.Series, len(c.outcomes))
	fallback := []models.Endpoint{}
	var overall *models.SentimentSample
	trend := a.state.Trend

	for _, o := range c.outcomes {
		if o.UsedFallback() {
			fallback = append(fallback, o.Name)
		}
		if !o.Name.IsSeries() {
			if o.Overall != nil {
				s := *o.Overall
				overall = &s
				if !o.UsedFallback() {
					if a.lastLive != nil {
						trend = computeTrend(*a.lastLive, s.NormalizedScore)
					}
					score := s.NormalizedScore
					a.lastLive = &score
				}
			}
			continue
		}
		buckets[o.Name] = o.Series
	}

	mode := models.ModeFor(len(fallback), len(c.outcomes))
	prevMode := a.state.Mode
	derived := analytics.Derive(buckets[models.EndpointDaily])

	a.state.Mode = mode
	a.state.FallbackEndpoints = fallback
	a.state.Overall = overall
	a.state.Buckets = buckets
	a.state.Trend = trend
	a.state.Metrics = derived
	a.state.Insights = analytics.Insights(derived)
	a.state.CycleID = c.id
	a.state.Sequence = c.seq
	a.state.UpdatedAt = a.now()
	a.state.Status = StatusReady

	degradedBefore := a.degradedCycles
	if mode != models.SyntheticNone {
		a.degradedCycles++
	} else {
		a.degradedCycles = 0
	}
	snap := a.state.clone()

	a.mu.Unlock()

	rec := &models.CycleRecord{
		ID:                c.id,
		Sequence:          c.seq,
		StartedAt:         c.started,
		CompletedAt:       snap.UpdatedAt,
		Mode:              mode,
		FallbackEndpoints: snap.FallbackEndpoints,
		Overall:           snap.Overall,
		Forced:            c.forced,
	}
	a.afterApply(rec, prevMode, degradedBefore, snap)
	return true
}

// afterApply publishes metrics, persists the cycle and sends notifications.
func (a *Aggregator) afterApply(rec *models.CycleRecord, prevMode models.SyntheticMode, degradedBefore int, snap State) {
	a.metrics.SetSyntheticMode(rec.Mode.Level())
	if !rec.Forced {
		a.metrics.ObserveCycle(rec.Duration())
	}

	switch rec.Mode {
	case models.SyntheticNone:
		logger.Info("Refresh cycle %d applied with live data for all endpoints", rec.Sequence)
	case models.SyntheticPartial:
		logger.Warn("Refresh cycle %d applied with mock data for %v", rec.Sequence, rec.FallbackEndpoints)
	case models.SyntheticFull:
		logger.Warn("Refresh cycle %d applied with mock data for all endpoints", rec.Sequence)
	}

	if a.recorder != nil {
		if err := a.recorder.RecordCycle(rec); err != nil {
			logger.Warn("Failed to record refresh cycle %s: %v", rec.ID, err)
		}
	}

	if a.notifier == nil {
		return
	}
	switch {
	case rec.Mode != models.SyntheticNone && (degradedBefore == 0 || rec.Mode != prevMode):
		if err := a.notifier.SendDegraded(rec.Mode, rec.FallbackEndpoints); err != nil {
			logger.Warn("Failed to send degradation notification to Telegram: %v", err)
		}
	case rec.Mode == models.SyntheticNone && degradedBefore > 0:
		if err := a.notifier.SendRecovery(degradedBefore); err != nil {
			logger.Warn("Failed to send recovery notification to Telegram: %v", err)
		}
	}
	if a.sendInsights && rec.Mode == models.SyntheticNone && len(snap.Insights) > 0 {
		if err := a.notifier.SendInsights(snap.Overall, snap.Insights); err != nil {
			logger.Warn("Failed to send insights to Telegram: %v", err)
		}
	}
}

// Run refreshes on schedule until ctx is cancelled. Refreshes run in the
// background so the force-fallback timer can fire while one is in flight;
// Run waits for them before returning.
func (a *Aggregator) Run(ctx context.Context) {
	logger.Info("Starting aggregator (refresh interval: %v, fallback after: %v)", a.refreshInterval, a.fallbackAfter)

	initial := time.NewTimer(a.initialDelay)
	defer initial.Stop()
	fallback := time.NewTimer(a.fallbackAfter)
	defer fallback.Stop()
	ticker := time.NewTicker(a.refreshInterval)
	defer ticker.Stop()

	var wg conc.WaitGroup
	defer wg.Wait()

	refresh := func(reason string) {
		wg.Go(func() {
			logger.Debug("Starting %s refresh", reason)
			err := a.Refresh(ctx)
			if err != nil && !errors.Is(err, ErrStaleCycle) && ctx.Err() == nil {
				logger.Error("Refresh cycle failed: %v", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Aggregator stopped")
			return
		case <-initial.C:
			refresh("initial")
		case <-fallback.C:
			a.ForceFallback()
		case <-ticker.C:
			refresh("scheduled")
		case <-a.trigger:
			refresh("manual")
		}
	}
}
