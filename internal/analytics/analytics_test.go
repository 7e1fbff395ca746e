package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// dailySeries builds consecutive daily buckets from 2025-01-01 with the given
// scores and tweet counts.
func dailySeries(scores []float64, tweets []int) models.Series {
	s := make(models.Series, len(scores))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range scores {
		n := 100
		if tweets != nil {
			n = tweets[i]
		}
		s[start.AddDate(0, 0, i).Format("2006-01-02")] = models.SentimentSample{
			NormalizedScore: score,
			TotalTweets:     n,
			Distribution:    models.Distribution{Positive: 0.5, Neutral: 0.3, Negative: 0.2},
		}
	}
	return s
}

func TestDerive_Empty(t *testing.T) {
	assert.Nil(t, Derive(nil))
	assert.Nil(t, Derive(models.Series{}))
}

func TestDerive_TwoDays(t *testing.T) {
	m := Derive(dailySeries([]float64{40, 60}, nil))
	require.NotNil(t, m)

	assert.Equal(t, 50.0, m.AvgSentiment)
	assert.Equal(t, 0.0, m.SentimentChange)
	assert.Equal(t, 0.0, m.VolumeChange)
	assert.Equal(t, 200, m.TotalTweets)
	require.NotNil(t, m.MostPositiveDay)
	require.NotNil(t, m.MostNegativeDay)
	assert.Equal(t, 60.0, m.MostPositiveDay.Sentiment)
	assert.Equal(t, "2025-01-02", m.MostPositiveDay.Key)
	assert.Equal(t, 40.0, m.MostNegativeDay.Sentiment)
	assert.Equal(t, "2025-01-01", m.MostNegativeDay.Key)
	assert.InDelta(t, 10.0, m.Volatility, 1e-9)
}

func TestDerive_ShortSeriesHasNoChange(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			scores := make([]float64, n)
			for i := range scores {
				scores[i] = float64(40 + i*3)
			}
			m := Derive(dailySeries(scores, nil))
			require.NotNil(t, m)
			assert.Equal(t, 0.0, m.SentimentChange)
			assert.Equal(t, 0.0, m.VolumeChange)
		})
	}
}

func TestDerive_Windows(t *testing.T) {
	// 3 ignored, 7 previous at 40, 7 current at 50.
	scores := []float64{90, 90, 90, 40, 40, 40, 40, 40, 40, 40, 50, 50, 50, 50, 50, 50, 50}
	tweets := []int{1, 1, 1, 100, 100, 100, 100, 100, 100, 100, 150, 150, 150, 150, 150, 150, 150}

	m := Derive(dailySeries(scores, tweets))
	require.NotNil(t, m)

	assert.Equal(t, 50.0, m.AvgSentiment)
	assert.InDelta(t, 25.0, m.SentimentChange, 1e-9)
	assert.Equal(t, 1050, m.TotalTweets)
	assert.InDelta(t, 50.0, m.VolumeChange, 1e-9)
	assert.Equal(t, 0.0, m.Volatility)
	// Ties resolve to the first bucket of the window.
	assert.Equal(t, "2025-01-11", m.MostPositiveDay.Key)
	assert.Equal(t, "2025-01-11", m.MostNegativeDay.Key)
}

func TestDerive_ZeroPreviousAverage(t *testing.T) {
	scores := []float64{0, 0, 0, 0, 0, 0, 0, 50, 50, 50, 50, 50, 50, 50}
	m := Derive(dailySeries(scores, nil))
	require.NotNil(t, m)
	assert.Equal(t, 0.0, m.SentimentChange)
}

func TestDerive_Idempotent(t *testing.T) {
	s := dailySeries([]float64{41, 63, 55, 48, 52, 70, 33, 59, 61, 47}, nil)
	assert.Equal(t, Derive(s), Derive(s))
}

func TestDerive_FlatWindowHasZeroVolatility(t *testing.T) {
	m := Derive(dailySeries([]float64{55, 55, 55, 55, 55, 55, 55}, nil))
	require.NotNil(t, m)
	assert.Equal(t, 0.0, m.Volatility)
}

func TestInsights(t *testing.T) {
	peak := &models.DayRef{Key: "2025-03-04", Time: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Sentiment: 61.6}
	low := &models.DayRef{Key: "2025-03-01", Time: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Sentiment: 38.2}

	tests := []struct {
		name    string
		metrics *models.DerivedMetrics
		want    []int
		types   []models.InsightType
	}{
		{"nil", nil, nil, nil},
		{"quiet", &models.DerivedMetrics{SentimentChange: 5, VolumeChange: -10, Volatility: 15}, nil, nil},
		{
			"improving and busier",
			&models.DerivedMetrics{SentimentChange: 7.25, VolumeChange: 12},
			[]int{1, 2},
			[]models.InsightType{models.InsightPositive, models.InsightInfo},
		},
		{
			"declining and volatile",
			&models.DerivedMetrics{SentimentChange: -9, Volatility: 16},
			[]int{1, 3},
			[]models.InsightType{models.InsightNegative, models.InsightWarning},
		},
		{
			"peaks",
			&models.DerivedMetrics{MostPositiveDay: peak, MostNegativeDay: low},
			[]int{4},
			[]models.InsightType{models.InsightInfo},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Insights(tt.metrics)
			require.Len(t, got, len(tt.want))
			for i, in := range got {
				assert.Equal(t, tt.want[i], in.ID)
				assert.Equal(t, tt.types[i], in.Type)
				assert.NotEmpty(t, in.Description)
			}
		})
	}
}

func TestInsights_Text(t *testing.T) {
	got := Insights(&models.DerivedMetrics{SentimentChange: -7.34})
	require.Len(t, got, 1)
	assert.Equal(t, "Sentiment has declined by 7.3% compared to the previous week.", got[0].Description)

	peak := &models.DayRef{Time: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Sentiment: 61.6}
	low := &models.DayRef{Time: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Sentiment: 38.2}
	got = Insights(&models.DerivedMetrics{MostPositiveDay: peak, MostNegativeDay: low})
	require.Len(t, got, 1)
	assert.Equal(t, "Peak positive sentiment was on Mar 4 (62), while the lowest was on Mar 1 (38).", got[0].Description)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "Very Positive"},
		{70, "Very Positive"},
		{69.9, "Positive"},
		{55, "Positive"},
		{50, "Neutral"},
		{45, "Neutral"},
		{30, "Negative"},
		{29.99, "Very Negative"},
		{0, "Very Negative"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.score), "score %v", tt.score)
	}
}

func TestDistributionTotals(t *testing.T) {
	points := dailySeries([]float64{50, 50, 50}, nil).Points()
	d := DistributionTotals(points)
	assert.InDelta(t, 1.5, d.Positive, 1e-9)
	assert.InDelta(t, 0.9, d.Neutral, 1e-9)
	assert.InDelta(t, 0.6, d.Negative, 1e-9)
	assert.Equal(t, models.Distribution{}, DistributionTotals(nil))
}

func TestRadar(t *testing.T) {
	assert.Nil(t, Radar(nil))

	scores := []float64{10, 10, 60, 60, 60, 60, 60}
	tweets := []int{5, 5, 50, 50, 50, 50, 500}
	axes := Radar(dailySeries(scores, tweets).Points())
	require.Len(t, axes, 5)

	assert.Equal(t, "Sentiment", axes[0].Subject)
	assert.InDelta(t, 0.6, axes[0].Value, 1e-9)
	assert.InDelta(t, 0.5, axes[1].Value, 1e-9)
	assert.InDelta(t, 0.3, axes[2].Value, 1e-9)
	assert.InDelta(t, 0.2, axes[3].Value, 1e-9)
	assert.Equal(t, 1.0, axes[4].Value, "volume axis is capped")
}

func TestCompare(t *testing.T) {
	first := models.SentimentSample{NormalizedScore: 40, TotalTweets: 100}
	second := models.SentimentSample{NormalizedScore: 50, TotalTweets: 80}

	c := Compare(first, second)
	assert.Equal(t, 10.0, c.ScoreDelta)
	assert.Equal(t, -20, c.VolumeDelta)
	assert.InDelta(t, 25.0, c.PercentChange, 1e-9)

	zero := Compare(models.SentimentSample{}, second)
	assert.Equal(t, 0.0, zero.PercentChange)
}
