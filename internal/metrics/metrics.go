// Package metrics holds the Prometheus collectors of the feed. Every method
// is safe to call on a nil *Metrics so components can run without metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "airdrop_feed"

// Stage outcomes
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
	OutcomeSkipped = "skipped"
)

// Metrics groups the collectors registered for one process
type Metrics struct {
	stageOutcomes   *prometheus.CounterVec
	acquireDuration prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	refreshResults  *prometheus.CounterVec
	cacheSize       prometheus.Gauge
	lastRefresh     prometheus.Gauge
	breakerState    *prometheus.GaugeVec
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_outcomes_total",
				Help:      "Acquisition stage outcomes",
			},
			[]string{"stage", "outcome"},
		),
		acquireDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "acquire_duration_seconds",
				Help:      "Duration of a full acquisition run",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"},
		),
		refreshResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_refreshes_total",
				Help:      "Cache refresh attempts by result",
			},
			[]string{"result"},
		),
		cacheSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_records",
				Help:      "Number of records in the cache slot",
			},
		),
		lastRefresh: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_last_refresh_timestamp_seconds",
				Help:      "Unix time of the last successful cache refresh",
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"source"},
		),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.stageOutcomes,
		m.acquireDuration,
		m.cacheLookups,
		m.refreshResults,
		m.cacheSize,
		m.lastRefresh,
		m.breakerState,
		m.requestCounter,
		m.requestDuration,
	)
	return m
}

// StageOutcome counts one acquisition stage result
func (m *Metrics) StageOutcome(stage, outcome string) {
	if m == nil {
		return
	}
	m.stageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// ObserveAcquire records the duration of an acquisition run
func (m *Metrics) ObserveAcquire(d time.Duration) {
	if m == nil {
		return
	}
	m.acquireDuration.Observe(d.Seconds())
}

// CacheLookup counts a cache read served from the slot (hit) or by a refresh (miss)
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RefreshResult counts a refresh attempt and, on success, updates the slot gauges
func (m *Metrics) RefreshResult(err error, size int, at time.Time) {
	if m == nil {
		return
	}
	if err != nil {
		m.refreshResults.WithLabelValues("error").Inc()
		return
	}
	m.refreshResults.WithLabelValues("success").Inc()
	m.cacheSize.Set(float64(size))
	m.lastRefresh.Set(float64(at.Unix()))
}

// SetBreakerState exports a breaker state as its numeric value
func (m *Metrics) SetBreakerState(source string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(source).Set(float64(state))
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}
