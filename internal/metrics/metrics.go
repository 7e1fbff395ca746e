// Package metrics exposes Prometheus collectors for the sentiment fetch path,
// the aggregation cycle and the HTTP APIs. Every method is safe on a nil
// *Metrics so components can run without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentimentdash"

// Metrics groups the application's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	syntheticMode prometheus.Gauge
	staleCycles   prometheus.Counter
	apiRequests   *prometheus.CounterVec
}

// New creates and registers all collectors, including Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Backend fetch attempts by path and result",
		}, []string{"path", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Endpoints served from synthetic data",
		}, []string{"endpoint"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Wall time of one aggregation cycle",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		syntheticMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "synthetic_mode",
			Help:      "0 = live, 1 = partially synthetic, 2 = fully synthetic",
		}),
		staleCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_cycles_total",
			Help:      "Refresh cycles discarded because a newer cycle was already applied",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP requests served by route and status",
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchAttempts,
		m.fallbacks,
		m.cycleDuration,
		m.syntheticMode,
		m.staleCycles,
		m.apiRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt counts one fetch attempt.
func (m *Metrics) ObserveAttempt(path string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchAttempts.WithLabelValues(path, result).Inc()
}

// ObserveFallback counts one endpoint served from synthetic data.
func (m *Metrics) ObserveFallback(endpoint string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(endpoint).Inc()
}

// ObserveCycle records the duration of an applied cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

// ObserveStaleCycle counts a discarded cycle.
func (m *Metrics) ObserveStaleCycle() {
	if m == nil {
		return
	}
	m.staleCycles.Inc()
}

// SetSyntheticMode publishes the dashboard's synthetic level.
func (m *Metrics) SetSyntheticMode(level int) {
	if m == nil {
		return
	}
	m.syntheticMode.Set(float64(level))
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
