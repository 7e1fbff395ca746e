package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt("/x", nil)
		m.ObserveFallback("daily")
		m.ObserveCycle(time.Second)
		m.ObserveStaleCycle()
		m.SetSyntheticMode(2)
		m.ObserveRequest("/health", 200)
	})
	assert.Nil(t, m.Registry())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCollectors(t *testing.T) {
	m := New()

	m.ObserveAttempt("/get_sentiment_by_day", nil)
	m.ObserveAttempt("/get_sentiment_by_day", errors.New("timeout"))
	m.ObserveAttempt("/get_sentiment_by_day", errors.New("timeout"))
	m.ObserveFallback("weekly")
	m.ObserveStaleCycle()
	m.SetSyntheticMode(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchAttempts.WithLabelValues("/get_sentiment_by_day", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetchAttempts.WithLabelValues("/get_sentiment_by_day", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("weekly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleCycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syntheticMode))
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/dashboard", 200)
	m.ObserveCycle(1500 * time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `sentimentdash_api_requests_total{route="/api/dashboard",status="200"} 1`)
	assert.Contains(t, body, "sentimentdash_refresh_cycle_duration_seconds_count 1")
	assert.Contains(t, body, "go_goroutines")
}
