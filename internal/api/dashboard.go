package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/sentimentdash/internal/aggregator"
	"github.com/rewired-gh/sentimentdash/internal/analytics"
	"github.com/rewired-gh/sentimentdash/internal/metrics"
	"github.com/rewired-gh/sentimentdash/internal/models"
)

// Dashboard is the state surface of *aggregator.Aggregator.
type Dashboard interface {
	Snapshot() aggregator.State
	Trigger()
	QueryRange(ctx context.Context, start, end time.Time) (models.SentimentSample, error)
	SelectDay(ctx context.Context, day time.Time) (models.SentimentSample, error)
	CompareRanges(ctx context.Context, first, second aggregator.Range) (models.RangeComparison, error)
	DismissError()
}

// CycleLister lists recorded refresh cycles. *storage.Storage implements it.
type CycleLister interface {
	RecentCycles(limit int) ([]models.CycleRecord, error)
}

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 500
)

// DashboardView is the JSON body of GET /api/dashboard.
type DashboardView struct {
	Status            aggregator.Status                  `json:"status"`
	Mode              models.SyntheticMode               `json:"mode"`
	IsUsingFallback   bool                               `json:"is_using_fallback"`
	FallbackEndpoints []models.Endpoint                  `json:"fallback_endpoints"`
	Overall           *models.SentimentSample            `json:"overall,omitempty"`
	Label             string                             `json:"label,omitempty"`
	Trend             *aggregator.Trend                  `json:"trend,omitempty"`
	Buckets           map[models.Endpoint][]models.Point `json:"buckets"`
	Metrics           *models.DerivedMetrics             `json:"metrics,omitempty"`
	Insights          []models.Insight                   `json:"insights"`
	Distribution      models.Distribution                `json:"distribution"`
	Radar             []analytics.RadarAxis              `json:"radar,omitempty"`
	CycleID           string                             `json:"cycle_id,omitempty"`
	UpdatedAt         time.Time                          `json:"updated_at"`
	CustomRange       *models.SentimentSample            `json:"custom_range,omitempty"`
	Comparison        *models.RangeComparison            `json:"comparison,omitempty"`
	RangeError        string                             `json:"range_error,omitempty"`
}

// NewDashboardView flattens a state snapshot for clients. Buckets become
// time-ordered points; distribution totals and the radar profile come from
// the daily bucket.
func NewDashboardView(s aggregator.State) DashboardView {
	v := DashboardView{
		Status:            s.Status,
		Mode:              s.Mode,
		IsUsingFallback:   s.Mode != models.SyntheticNone,
		FallbackEndpoints: s.FallbackEndpoints,
		Overall:           s.Overall,
		Trend:             s.Trend,
		Buckets:           make(map[models.Endpoint][]models.Point, len(s.Buckets)),
		Metrics:           s.Metrics,
		Insights:          s.Insights,
		CycleID:           s.CycleID,
		UpdatedAt:         s.UpdatedAt,
		CustomRange:       s.CustomRange,
		Comparison:        s.Comparison,
		RangeError:        s.RangeError,
	}
	if v.FallbackEndpoints == nil {
		v.FallbackEndpoints = []models.Endpoint{}
	}
	if v.Insights == nil {
		v.Insights = []models.Insight{}
	}
	if s.Overall != nil {
		v.Label = analytics.Label(s.Overall.NormalizedScore)
	}
	for e, series := range s.Buckets {
		v.Buckets[e] = series.Points()
	}
	daily := v.Buckets[models.EndpointDaily]
	v.Distribution = analytics.DistributionTotals(daily)
	v.Radar = analytics.Radar(daily)
	return v
}

// DashboardHandler serves the dashboard API.
type DashboardHandler struct {
	dash   Dashboard
	cycles CycleLister
}

// NewDashboardRouter returns the gin engine for the dashboard API. cycles may
// be nil, in which case /api/cycles is not served.
func NewDashboardRouter(dash Dashboard, cycles CycleLister, m *metrics.Metrics) *gin.Engine {
	h := &DashboardHandler{dash: dash, cycles: cycles}
	r := newEngine(m, 0)

	g := r.Group("/api")
	g.GET("/dashboard", h.GetDashboard)
	g.POST("/refresh", h.PostRefresh)
	g.GET("/range", h.GetRange)
	g.GET("/compare", h.GetCompare)
	g.DELETE("/error", h.DeleteError)
	if cycles != nil {
		g.GET("/cycles", h.GetCycles)
	}
	return r
}

func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, NewDashboardView(h.dash.Snapshot()))
}

func (h *DashboardHandler) PostRefresh(c *gin.Context) {
	h.dash.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh scheduled"})
}

// GetRange queries ?start=&end= or a single ?day=.
func (h *DashboardHandler) GetRange(c *gin.Context) {
	var (
		sample models.SentimentSample
		err    error
	)
	if day := c.Query("day"); day != "" {
		d, perr := parseDate(day)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'day' parameter, expected YYYY-MM-DD"})
			return
		}
		sample, err = h.dash.SelectDay(c.Request.Context(), d)
	} else {
		r, ok := queryRange(c, "start", "end")
		if !ok {
			return
		}
		sample, err = h.dash.QueryRange(c.Request.Context(), r.Start, r.End)
	}
	if err != nil {
		h.rangeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

func (h *DashboardHandler) GetCompare(c *gin.Context) {
	first, ok := queryRange(c, "first_start", "first_end")
	if !ok {
		return
	}
	second, ok := queryRange(c, "second_start", "second_end")
	if !ok {
		return
	}
	cmp, err := h.dash.CompareRanges(c.Request.Context(), first, second)
	if err != nil {
		h.rangeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (h *DashboardHandler) DeleteError(c *gin.Context) {
	h.dash.DismissError()
	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) GetCycles(c *gin.Context) {
	limit := defaultCycleLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxCycleLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter"})
			return
		}
		limit = n
	}
	cycles, err := h.cycles.RecentCycles(limit)
	if err != nil {
		storeError(c, err)
		return
	}
	if cycles == nil {
		cycles = []models.CycleRecord{}
	}
	c.JSON(http.StatusOK, cycles)
}

// rangeFailed reports a failed range query with the inline message the
// dashboard stored for it.
func (h *DashboardHandler) rangeFailed(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, aggregator.ErrInvalidRange) {
		status = http.StatusBadRequest
	}
	msg := err.Error()
	var rerr *aggregator.RangeError
	if errors.As(err, &rerr) {
		msg = rerr.Message
	}
	c.JSON(status, gin.H{"error": msg})
}

func queryRange(c *gin.Context, startKey, endKey string) (aggregator.Range, bool) {
	start, err1 := parseDate(c.Query(startKey))
	end, err2 := parseDate(c.Query(endKey))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Please provide '" + startKey + "' and '" + endKey + "' as YYYY-MM-DD",
		})
		return aggregator.Range{}, false
	}
	return aggregator.Range{Start: start, End: end}, true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
