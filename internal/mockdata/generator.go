// Package mockdata generates synthetic sentiment data in exactly the shape of
// live backend responses, so the dashboard can substitute it per endpoint when
// the backend is unreachable.
package mockdata

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// Layout is the key format for generated buckets.
const Layout = "2006-01-02T15:04:05.000Z"

// Documented value ranges for generated samples.
const (
	MinScore     = 45.0
	ScoreSpan    = 20.0
	MinTweets    = 100
	TweetSpan    = 1000
	MinPositive  = 0.3
	PositiveSpan = 0.4
	MinNegative  = 0.1
	NegativeSpan = 0.2
)

// Bucket layout per granularity.
type shape struct {
	count   int
	spacing time.Duration
}

var shapes = map[models.Endpoint]shape{
	models.EndpointDaily:      {count: 30, spacing: 24 * time.Hour},
	models.EndpointWeekly:     {count: 12, spacing: 7 * 24 * time.Hour},
	models.EndpointHourly:     {count: 24, spacing: time.Hour},
	models.EndpointFiveMin:    {count: 60, spacing: 5 * time.Minute},
	models.EndpointIterations: {count: 100, spacing: 30 * time.Second},
}

// Overall is the fixed all-time sample served when the overall endpoint fails.
var Overall = models.SentimentSample{
	NormalizedScore: 58.7,
	RawScore:        17.4,
	TotalTweets:     15420,
	Distribution: models.Distribution{
		Positive: 0.42,
		Neutral:  0.38,
		Negative: 0.20,
	},
}

// Generator produces synthetic samples from an explicit random source.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a generator. A zero seed draws the seed from the clock.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

// BucketCount returns how many buckets Series generates for an endpoint.
func BucketCount(e models.Endpoint) int {
	return shapes[e].count
}

// Spacing returns the distance between generated buckets for an endpoint.
func Spacing(e models.Endpoint) time.Duration {
	return shapes[e].spacing
}

// Outcome builds a fallback FetchOutcome for the endpoint.
func (g *Generator) Outcome(e models.Endpoint, now time.Time, cause error) models.FetchOutcome {
	out := models.FetchOutcome{Name: e, Status: models.StatusUsedFallback, Err: cause}
	if e.IsSeries() {
		out.Series = g.Series(e, now)
	} else {
		overall := Overall
		out.Overall = &overall
	}
	return out
}

// Series generates the synthetic series for a series endpoint, ending at now.
// Unknown or non-series endpoints yield an empty series.
func (g *Generator) Series(e models.Endpoint, now time.Time) models.Series {
	sh, ok := shapes[e]
	if !ok {
		return models.Series{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	series := make(models.Series, sh.count)
	for i := sh.count - 1; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * sh.spacing).UTC()
		series[ts.Format(Layout)] = g.sample()
	}
	return series
}

// sample draws one random sample. Callers hold g.mu.
func (g *Generator) sample() models.SentimentSample {
	score := MinScore + g.rng.Float64()*ScoreSpan
	positive := MinPositive + g.rng.Float64()*PositiveSpan
	negative := MinNegative + g.rng.Float64()*NegativeSpan
	return models.SentimentSample{
		NormalizedScore: score,
		RawScore:        (score - 50) * 2,
		TotalTweets:     MinTweets + g.rng.IntN(TweetSpan),
		Distribution: models.Distribution{
			Positive: positive,
			Neutral:  1 - positive - negative,
			Negative: negative,
		},
	}
}
