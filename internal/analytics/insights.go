package analytics

import (
	"fmt"
	"math"

	"github.com/rewired-gh/sentimentdash/internal/models"
)

// Insight thresholds.
const (
	SentimentChangeThreshold = 5.0  // percent
	VolumeChangeThreshold    = 10.0 // percent
	VolatilityThreshold      = 15.0 // score points
)

// Insights turns derived metrics into display-ready observations.
// Nil metrics produce no insights.
func Insights(m *models.DerivedMetrics) []models.Insight {
	if m == nil {
		return nil
	}

	var insights []models.Insight

	if math.Abs(m.SentimentChange) > SentimentChangeThreshold {
		in := models.Insight{ID: 1}
		if m.SentimentChange > 0 {
			in.Type = models.InsightPositive
			in.Title = "Positive Sentiment Trend"
			in.Description = fmt.Sprintf("Sentiment has improved by %.1f%% compared to the previous week.", m.SentimentChange)
		} else {
			in.Type = models.InsightNegative
			in.Title = "Negative Sentiment Trend"
			in.Description = fmt.Sprintf("Sentiment has declined by %.1f%% compared to the previous week.", math.Abs(m.SentimentChange))
		}
		insights = append(insights, in)
	}

	if math.Abs(m.VolumeChange) > VolumeChangeThreshold {
		in := models.Insight{ID: 2, Type: models.InsightInfo}
		if m.VolumeChange > 0 {
			in.Title = "Increased Twitter Activity"
			in.Description = fmt.Sprintf("Tweet volume has increased by %.1f%% compared to the previous week.", m.VolumeChange)
		} else {
			in.Title = "Decreased Twitter Activity"
			in.Description = fmt.Sprintf("Tweet volume has decreased by %.1f%% compared to the previous week.", math.Abs(m.VolumeChange))
		}
		insights = append(insights, in)
	}

	if m.Volatility > VolatilityThreshold {
		insights = append(insights, models.Insight{
			ID:          3,
			Type:        models.InsightWarning,
			Title:       "High Sentiment Volatility",
			Description: fmt.Sprintf("Sentiment has been highly volatile with a standard deviation of %.1f points.", m.Volatility),
		})
	}

	if m.MostPositiveDay != nil && m.MostNegativeDay != nil {
		insights = append(insights, models.Insight{
			ID:    4,
			Type:  models.InsightInfo,
			Title: "Sentiment Peaks",
			Description: fmt.Sprintf("Peak positive sentiment was on %s (%.0f), while the lowest was on %s (%.0f).",
				formatDay(m.MostPositiveDay), math.Round(m.MostPositiveDay.Sentiment),
				formatDay(m.MostNegativeDay), math.Round(m.MostNegativeDay.Sentiment)),
		})
	}

	return insights
}

func formatDay(d *models.DayRef) string {
	if d.Time.IsZero() {
		return d.Key
	}
	return d.Time.Format("Jan 2")
}

// Label maps a normalized score to its display band.
func Label(score float64) string {
	switch {
	case score >= 70:
		return "Very Positive"
	case score >= 55:
		return "Positive"
	case score >= 45:
		return "Neutral"
	case score >= 30:
		return "Negative"
	default:
		return "Very Negative"
	}
}
