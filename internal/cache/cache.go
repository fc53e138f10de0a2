// Package cache fronts the acquisition chain with a single time-boxed slot.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourorg/defi-airdrop-feed/internal/metrics"
	"github.com/yourorg/defi-airdrop-feed/internal/model"
)

// DefaultTTL is the freshness window of the slot
const DefaultTTL = 5 * time.Minute

const refreshKey = "records"

// Acquirer produces a full record set (the orchestrator)
type Acquirer interface {
	Acquire(ctx context.Context) ([]model.Record, error)
}

// Cache holds the last successful record set and the time it was produced.
// Records returned by Get are shared; callers must not mutate them.
type Cache struct {
	acquirer Acquirer
	ttl      time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time

	mu          sync.RWMutex
	records     []model.Record
	refreshedAt time.Time
	refreshed   bool

	// sf keeps at most one refresh in flight; concurrent callers share it
	sf singleflight.Group

	hookMu sync.RWMutex
	hooks  []func([]model.Record)
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets the freshness window
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithMetrics records lookups and refreshes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache in front of a
func New(a Acquirer, opts ...Option) *Cache {
	c := &Cache{
		acquirer: a,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached records, refreshing first when force is set, when
// the slot was never filled or when it is older than the TTL.
//
// A failed refresh keeps the previous slot and returns it without error;
// the acquirer's error is only returned when there is nothing to fall back to.
func (c *Cache) Get(ctx context.Context, force bool) ([]model.Record, error) {
	if !force {
		if records, ok := c.fresh(); ok {
			c.metrics.CacheLookup(true)
			return records, nil
		}
	}
	c.metrics.CacheLookup(false)

	// The shared refresh must not be aborted by one caller going away.
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(refreshKey, func() (interface{}, error) {
		return c.refresh(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Record), nil
	case <-ctx.Done():
		if records, ok := c.stale(); ok {
			return records, nil
		}
		return nil, ctx.Err()
	}
}

// PeekLastRefreshTime returns the time of the last successful refresh
func (c *Cache) PeekLastRefreshTime() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt, c.refreshed
}

// Peek returns the slot without refreshing it, whether or not it is fresh
func (c *Cache) Peek() ([]model.Record, bool) {
	return c.stale()
}

// Size returns the number of records in the slot
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration { return c.ttl }

// OnRefresh registers fn to be called with every successfully refreshed set
func (c *Cache) OnRefresh(fn func([]model.Record)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *Cache) fresh() ([]model.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.refreshed || c.now().Sub(c.refreshedAt) > c.ttl {
		return nil, false
	}
	return c.records, true
}

func (c *Cache) stale() ([]model.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records, c.refreshed
}

func (c *Cache) refresh(ctx context.Context) ([]model.Record, error) {
	records, err := c.acquirer.Acquire(ctx)
	if err != nil {
		c.metrics.RefreshResult(err, 0, time.Time{})
		if stale, ok := c.stale(); ok {
			logrus.WithError(err).Warn("Cache refresh failed, serving stale records")
			return stale, nil
		}
		logrus.WithError(err).Error("Cache refresh failed with no stale records")
		return nil, err
	}

	at := c.now()
	c.mu.Lock()
	c.records = records
	c.refreshedAt = at
	c.refreshed = true
	c.mu.Unlock()

	c.metrics.RefreshResult(nil, len(records), at)
	logrus.WithFields(logrus.Fields{
		"records": len(records),
		"ttl":     c.ttl,
	}).Debug("Cache refreshed")

	c.hookMu.RLock()
	hooks := make([]func([]model.Record), len(c.hooks))
	copy(hooks, c.hooks)
	c.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(records)
	}
	return records, nil
}
