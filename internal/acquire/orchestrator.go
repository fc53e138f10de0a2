// Package acquire composes the source adapters into the linear acquisition
// chain: direct listing, records derived from protocol statistics, and a
// static last-resort set. Acquire never returns an empty result; its only
// error is an invariant violation in the final set.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/defi-airdrop-feed/internal/circuitbreaker"
	"github.com/yourorg/defi-airdrop-feed/internal/metrics"
	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/otel"
	"github.com/yourorg/defi-airdrop-feed/internal/validation"
)

// Stage names
const (
	StageDirect   = "direct"
	StageDerived  = "derived"
	StageFallback = "fallback"
)

// RecordSource yields ready records (the listing adapter)
type RecordSource interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Record, error)
}

// StatSource yields protocol statistics (the statistics adapter)
type StatSource interface {
	Name() string
	Fetch(ctx context.Context) ([]model.ProtocolStat, error)
}

// Orchestrator runs the acquisition chain.
type Orchestrator struct {
	listing  RecordSource
	stats    StatSource
	policy   Policy
	breakers *circuitbreaker.Group
	metrics  *metrics.Metrics
	fallback []model.Record
	now      func() time.Time

	mu        sync.RWMutex
	lastStage string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPolicy replaces the derived-stage heuristics
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithBreakers guards the direct and derived stages with the group's breakers
func WithBreakers(g *circuitbreaker.Group) Option {
	return func(o *Orchestrator) { o.breakers = g }
}

// WithMetrics records stage outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithFallback replaces the static last-resort records
func WithFallback(records []model.Record) Option {
	return func(o *Orchestrator) { o.fallback = records }
}

// WithClock overrides the time source used for stamping
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator over the two sources. Either may be nil, in
// which case its stage yields nothing.
func New(listing RecordSource, stats StatSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		listing:  listing,
		stats:    stats,
		policy:   DefaultPolicy(),
		fallback: staticRecords,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Acquire runs the chain and returns the first non-empty stage result.
// Stages run strictly in order; a later stage is only started once the
// earlier one is known to have produced nothing.
func (o *Orchestrator) Acquire(ctx context.Context) ([]model.Record, error) {
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, "acquire")
	defer span.End()
	defer func() { o.metrics.ObserveAcquire(time.Since(start)) }()

	stage, records := StageFallback, []model.Record(nil)
	if direct := o.direct(ctx); len(direct) > 0 {
		stage, records = StageDirect, direct
	} else if derived := o.derived(ctx); len(derived) > 0 {
		stage, records = StageDerived, derived
	} else {
		records = stamped(o.fallback, o.now())
		o.metrics.StageOutcome(StageFallback, metrics.OutcomeSuccess)
	}

	now := o.now()
	for i := range records {
		records[i] = records[i].Stamp(now)
	}

	if err := validation.CheckRecords(records); err != nil {
		otel.RecordError(ctx, err)
		logrus.WithFields(logrus.Fields{
			"stage": stage,
			"error": err,
		}).Error("Acquisition produced an invalid result set")
		return nil, fmt.Errorf("acquire %s stage: %w", stage, err)
	}

	o.mu.Lock()
	o.lastStage = stage
	o.mu.Unlock()

	span.SetAttributes(attribute.String("stage", stage), attribute.Int("records", len(records)))
	logrus.WithFields(logrus.Fields{
		"stage":    stage,
		"records":  len(records),
		"duration": time.Since(start),
	}).Info("Acquisition complete")
	return records, nil
}

// LastStage names the stage that produced the most recent result
func (o *Orchestrator) LastStage() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastStage
}

// Breakers returns the breaker group, or nil when stages are unguarded
func (o *Orchestrator) Breakers() *circuitbreaker.Group {
	return o.breakers
}

func (o *Orchestrator) direct(ctx context.Context) []model.Record {
	if o.listing == nil {
		return nil
	}
	return o.run(ctx, StageDirect, o.listing.Name(), func(ctx context.Context) ([]model.Record, error) {
		records, err := o.listing.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return validation.FilterInvalid(records), nil
	})
}

func (o *Orchestrator) derived(ctx context.Context) []model.Record {
	if o.stats == nil {
		return nil
	}
	return o.run(ctx, StageDerived, o.stats.Name(), func(ctx context.Context) ([]model.Record, error) {
		stats, err := o.stats.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		now := o.now()
		records := make([]model.Record, 0, len(stats))
		for _, s := range stats {
			records = append(records, DeriveRecord(s, o.policy, now))
		}
		return validation.FilterInvalid(records), nil
	})
}

var errEmptyStage = errors.New("stage produced no records")

// run executes one guarded stage. Errors, panics and an open breaker all
// count as zero records.
func (o *Orchestrator) run(ctx context.Context, stage, source string, fn func(context.Context) ([]model.Record, error)) (records []model.Record) {
	log := logrus.WithFields(logrus.Fields{"stage": stage, "source": source})

	var breaker *circuitbreaker.CircuitBreaker
	if o.breakers != nil {
		breaker = o.breakers.Get(source)
		if err := breaker.Allow(); err != nil {
			log.Warnf("Skipping stage: %v", err)
			o.metrics.StageOutcome(stage, metrics.OutcomeSkipped)
			return nil
		}
		defer func() { o.metrics.SetBreakerState(source, int(breaker.GetState())) }()
	}

	ctx, span := otel.StartSpan(ctx, "acquire."+stage, attribute.String("source", source))
	defer span.End()

	outcome := metrics.OutcomeSuccess
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s stage: %v", stage, r)
			otel.RecordError(ctx, err)
			log.Errorf("Recovered from panic: %v", r)
			records, outcome = nil, metrics.OutcomePanic
			if breaker != nil {
				breaker.RecordFailure(err)
			}
		}
		o.metrics.StageOutcome(stage, outcome)
	}()

	records, err := fn(ctx)
	if err == nil && len(records) == 0 {
		err, outcome = errEmptyStage, metrics.OutcomeEmpty
	} else if err != nil {
		outcome = metrics.OutcomeError
	}

	if err != nil {
		otel.RecordError(ctx, err)
		log.Warnf("Stage yielded no usable records: %v", err)
		if breaker != nil {
			breaker.RecordFailure(err)
		}
		return nil
	}

	if breaker != nil {
		breaker.RecordSuccess()
	}
	log.WithField("records", len(records)).Debug("Stage succeeded")
	return records
}
