package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/sentimentdash/internal/mockdata"
	"github.com/rewired-gh/sentimentdash/internal/models"
)

var errUnreachable = errors.New("connection refused")

// fakeSource serves fixed live data and fails the configured endpoints.
type fakeSource struct {
	mu       sync.Mutex
	failing  map[models.Endpoint]bool
	overall  float64
	calls    map[models.Endpoint]int
	block    chan struct{} // when set, Fetch waits on it
	rangeErr error
	ranges   map[string]models.SentimentSample
}

func newFakeSource(failing ...models.Endpoint) *fakeSource {
	f := &fakeSource{
		failing: make(map[models.Endpoint]bool),
		overall: 60,
		calls:   make(map[models.Endpoint]int),
		ranges:  make(map[string]models.SentimentSample),
	}
	for _, e := range failing {
		f.failing[e] = true
	}
	return f
}

func (f *fakeSource) setOverall(score float64) {
	f.mu.Lock()
	f.overall = score
	f.mu.Unlock()
}

func (f *fakeSource) Fetch(ctx context.Context, e models.Endpoint, now time.Time) (models.FetchOutcome, error) {
	f.mu.Lock()
	f.calls[e]++
	failing := f.failing[e]
	score := f.overall
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.FetchOutcome{}, ctx.Err()
		}
	}
	if failing {
		return models.FetchOutcome{}, errUnreachable
	}

	sample := models.SentimentSample{
		NormalizedScore: score,
		TotalTweets:     10,
		Distribution:    models.Distribution{Positive: 0.6, Neutral: 0.3, Negative: 0.1},
	}
	out := models.FetchOutcome{Name: e, Status: models.StatusSuccess}
	if e.IsSeries() {
		out.Series = models.Series{"2025-01-01": sample, "2025-01-02": sample}
	} else {
		out.Overall = &sample
	}
	return out, nil
}

func (f *fakeSource) FetchRange(ctx context.Context, start, end time.Time) (models.SentimentSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rangeErr != nil {
		return models.SentimentSample{}, f.rangeErr
	}
	return f.ranges[start.Format(time.DateOnly)], nil
}

// recorder captures cycles and notifications.
type recorder struct {
	mu        sync.Mutex
	cycles    []*models.CycleRecord
	degraded  []models.SyntheticMode
	recovered []int
	insights  int
}

func (r *recorder) RecordCycle(rec *models.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, rec)
	return nil
}

func (r *recorder) SendDegraded(mode models.SyntheticMode, endpoints []models.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = append(r.degraded, mode)
	return nil
}

func (r *recorder) SendRecovery(degradedCycles int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recovered = append(r.recovered, degradedCycles)
	return nil
}

func (r *recorder) SendInsights(overall *models.SentimentSample, insights []models.Insight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insights++
	return nil
}

func newTestAggregator(src Source, rec *recorder) *Aggregator {
	opts := Options{
		Source: src,
		Mock:   mockdata.New(7),
	}
	if rec != nil {
		opts.Recorder = rec
		opts.Notifier = rec
	}
	return New(opts)
}

func TestNew_StartsLoading(t *testing.T) {
	a := newTestAggregator(newFakeSource(), nil)
	s := a.Snapshot()
	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, models.SyntheticNone, s.Mode)
	assert.Nil(t, s.Overall)
	assert.Empty(t, s.Buckets)
}

func TestRefresh_AllLive(t *testing.T) {
	a := newTestAggregator(newFakeSource(), nil)
	require.NoError(t, a.Refresh(context.Background()))

	s := a.Snapshot()
	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, models.SyntheticNone, s.Mode)
	assert.Empty(t, s.FallbackEndpoints)
	require.NotNil(t, s.Overall)
	assert.Equal(t, 60.0, s.Overall.NormalizedScore)
	assert.Len(t, s.Buckets, 5)
	assert.Nil(t, s.Trend, "first live fetch has nothing to compare against")
	require.NotNil(t, s.Metrics)
	assert.Equal(t, 60.0, s.Metrics.AvgSentiment)
	assert.NotEmpty(t, s.CycleID)
	assert.Equal(t, uint64(1), s.Sequence)
}

func TestRefresh_PartialFallback(t *testing.T) {
	src := newFakeSource(models.EndpointWeekly, models.EndpointIterations)
	a := newTestAggregator(src, nil)
	require.NoError(t, a.Refresh(context.Background()))

	s := a.Snapshot()
	assert.Equal(t, models.SyntheticPartial, s.Mode)
	assert.Equal(t, StatusReady, s.Status, "partial fallback is still ready")
	assert.Equal(t, []models.Endpoint{models.EndpointWeekly, models.EndpointIterations}, s.FallbackEndpoints)

	// Fallback buckets carry the generator's shape, live ones the source's.
	assert.Len(t, s.Buckets[models.EndpointWeekly], mockdata.BucketCount(models.EndpointWeekly))
	assert.Len(t, s.Buckets[models.EndpointIterations], mockdata.BucketCount(models.EndpointIterations))
	assert.Len(t, s.Buckets[models.EndpointDaily], 2)
	assert.Equal(t, 60.0, s.Overall.NormalizedScore)
}

func TestRefresh_FullFallback(t *testing.T) {
	src := newFakeSource(models.Endpoints()...)
	a := newTestAggregator(src, nil)
	require.NoError(t, a.Refresh(context.Background()))

	s := a.Snapshot()
	assert.Equal(t, models.SyntheticFull, s.Mode)
	assert.Equal(t, StatusReady, s.Status, "synthetic data is flagged by the mode")
	assert.Equal(t, models.Endpoints(), s.FallbackEndpoints)

	require.NotNil(t, s.Overall)
	assert.Equal(t, mockdata.Overall, *s.Overall)
	for _, e := range models.Endpoints() {
		if !e.IsSeries() {
			continue
		}
		assert.NotEmpty(t, s.Buckets[e], "bucket %s must be populated", e)
	}
}

func TestRefresh_RecoveryClearsFlags(t *testing.T) {
	src := newFakeSource(models.EndpointHourly)
	rec := &recorder{}
	a := newTestAggregator(src, rec)

	require.NoError(t, a.Refresh(context.Background()))
	require.NoError(t, a.Refresh(context.Background()))
	assert.Equal(t, models.SyntheticPartial, a.Snapshot().Mode)

	src.mu.Lock()
	src.failing = map[models.Endpoint]bool{}
	src.mu.Unlock()
	require.NoError(t, a.Refresh(context.Background()))

	s := a.Snapshot()
	assert.Equal(t, models.SyntheticNone, s.Mode)
	assert.Equal(t, StatusReady, s.Status)
	assert.Empty(t, s.FallbackEndpoints)

	assert.Equal(t, []models.SyntheticMode{models.SyntheticPartial}, rec.degraded, "degradation is reported once")
	assert.Equal(t, []int{2}, rec.recovered)
	assert.Len(t, rec.cycles, 3)
}

func TestRefresh_Trend(t *testing.T) {
	src := newFakeSource()
	a := newTestAggregator(src, nil)
	ctx := context.Background()

	require.NoError(t, a.Refresh(ctx))
	assert.Nil(t, a.Snapshot().Trend)

	src.setOverall(66)
	require.NoError(t, a.Refresh(ctx))
	trend := a.Snapshot().Trend
	require.NotNil(t, trend)
	assert.Equal(t, TrendUp, trend.Direction)
	require.NotNil(t, trend.Percent)
	assert.InDelta(t, 10.0, *trend.Percent, 1e-9)

	src.setOverall(66)
	require.NoError(t, a.Refresh(ctx))
	assert.Equal(t, TrendFlat, a.Snapshot().Trend.Direction)

	src.setOverall(33)
	require.NoError(t, a.Refresh(ctx))
	trend = a.Snapshot().Trend
	assert.Equal(t, TrendDown, trend.Direction)
	assert.InDelta(t, -50.0, *trend.Percent, 1e-9)
}

func TestRefresh_TrendSkipsZeroPrevious(t *testing.T) {
	src := newFakeSource()
	src.setOverall(0)
	a := newTestAggregator(src, nil)

	require.NoError(t, a.Refresh(context.Background()))
	src.setOverall(40)
	require.NoError(t, a.Refresh(context.Background()))

	trend := a.Snapshot().Trend
	require.NotNil(t, trend)
	assert.Equal(t, TrendUp, trend.Direction)
	assert.Nil(t, trend.Percent)
}

func TestRefresh_StaleCycleDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := newFakeSource()
	src.block = gate
	a := newTestAggregator(src, nil)

	slow := make(chan error, 1)
	go func() { slow <- a.Refresh(context.Background()) }()

	// Wait until the slow cycle holds sequence 1 and is blocked in Fetch.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls[models.EndpointAll] == 1
	}, time.Second, 5*time.Millisecond)

	src.mu.Lock()
	src.block = nil
	src.overall = 70
	src.mu.Unlock()
	require.NoError(t, a.Refresh(context.Background()))

	// The first cycle started earlier and must not overwrite the newer one.
	close(gate)
	assert.ErrorIs(t, <-slow, ErrStaleCycle)

	s := a.Snapshot()
	assert.Equal(t, uint64(2), s.Sequence)
	assert.Equal(t, 70.0, s.Overall.NormalizedScore)
}

func TestRefresh_ContextCancelled(t *testing.T) {
	src := newFakeSource()
	src.block = make(chan struct{})
	a := newTestAggregator(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, a.Refresh(ctx), context.Canceled)
	assert.Equal(t, StatusLoading, a.Snapshot().Status)
}

func TestForceFallback(t *testing.T) {
	rec := &recorder{}
	a := newTestAggregator(newFakeSource(), rec)

	require.True(t, a.ForceFallback())
	s := a.Snapshot()
	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, models.SyntheticFull, s.Mode)
	assert.Equal(t, models.Endpoints(), s.FallbackEndpoints)
	for _, e := range models.Endpoints() {
		if e.IsSeries() {
			assert.NotEmpty(t, s.Buckets[e])
		}
	}
	require.Len(t, rec.cycles, 1)
	assert.True(t, rec.cycles[0].Forced)

	// Already populated: no second forced fill.
	assert.False(t, a.ForceFallback())

	// A live cycle still replaces the synthetic data.
	require.NoError(t, a.Refresh(context.Background()))
	s = a.Snapshot()
	assert.Equal(t, models.SyntheticNone, s.Mode)
	assert.Equal(t, 60.0, s.Overall.NormalizedScore)
}

func TestForceFallback_AfterLiveCycle(t *testing.T) {
	a := newTestAggregator(newFakeSource(), nil)
	require.NoError(t, a.Refresh(context.Background()))
	assert.False(t, a.ForceFallback())
	assert.Equal(t, StatusReady, a.Status())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	a := newTestAggregator(newFakeSource(models.EndpointDaily), nil)
	require.NoError(t, a.Refresh(context.Background()))

	s := a.Snapshot()
	s.Overall.NormalizedScore = -1
	s.FallbackEndpoints[0] = "tampered"
	for k := range s.Buckets[models.EndpointDaily] {
		delete(s.Buckets[models.EndpointDaily], k)
	}

	fresh := a.Snapshot()
	assert.Equal(t, 60.0, fresh.Overall.NormalizedScore)
	assert.Equal(t, models.EndpointDaily, fresh.FallbackEndpoints[0])
	assert.NotEmpty(t, fresh.Buckets[models.EndpointDaily])
}

func TestRun_InitialRefreshAndTrigger(t *testing.T) {
	src := newFakeSource()
	a := New(Options{
		Source:          src,
		Mock:            mockdata.New(1),
		RefreshInterval: time.Hour,
		FallbackAfter:   time.Hour,
		InitialDelay:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return a.Status() == StatusReady }, 2*time.Second, 5*time.Millisecond)

	a.Trigger()
	require.Eventually(t, func() bool { return a.Snapshot().Sequence == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_ForceFallbackWhileBackendHangs(t *testing.T) {
	src := newFakeSource()
	src.block = make(chan struct{})
	a := New(Options{
		Source:          src,
		Mock:            mockdata.New(1),
		RefreshInterval: time.Hour,
		FallbackAfter:   20 * time.Millisecond,
		InitialDelay:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return a.Snapshot().Mode == models.SyntheticFull }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusReady, a.Status())

	cancel()
	<-done
}
