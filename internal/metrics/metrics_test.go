package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Collectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StageOutcome("listing", OutcomeEmpty)
	m.StageOutcome("listing", OutcomeEmpty)
	m.StageOutcome("stats", OutcomeSuccess)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageOutcomes.WithLabelValues("listing", OutcomeEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageOutcomes.WithLabelValues("stats", OutcomeSuccess)))

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))

	at := time.Unix(1_700_000_000, 0)
	m.RefreshResult(nil, 12, at)
	m.RefreshResult(errors.New("boom"), 0, time.Time{})
	assert.Equal(t, 12.0, testutil.ToFloat64(m.cacheSize), "a failed refresh leaves the size gauge alone")
	assert.Equal(t, 1_700_000_000.0, testutil.ToFloat64(m.lastRefresh))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshResults.WithLabelValues("error")))

	m.SetBreakerState("stats", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("stats")))

	m.ObserveHTTP("/airdrops", "GET", 200, 15*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCounter.WithLabelValues("/airdrops", "GET", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StageOutcome("listing", OutcomeSuccess)
		m.ObserveAcquire(time.Second)
		m.CacheLookup(true)
		m.RefreshResult(nil, 1, time.Now())
		m.SetBreakerState("stats", 0)
		m.ObserveHTTP("/", "GET", 200, time.Millisecond)
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
