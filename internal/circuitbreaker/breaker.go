// Package circuitbreaker protects the acquisition chain from repeatedly paying
// for an upstream source that keeps failing.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned by Allow while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker open")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, no new calls allowed
	StateHalfOpen              // Testing if the source has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a breaker
type Options struct {
	// FailureThreshold consecutive failures open the breaker
	FailureThreshold int `json:"failure_threshold" toml:"failure_threshold"`

	// Cooldown is how long the breaker stays open before a trial call
	Cooldown time.Duration `json:"cooldown" toml:"cooldown"`

	// SuccessThreshold successful trial calls close the breaker again
	SuccessThreshold int `json:"success_threshold" toml:"success_threshold"`
}

// DefaultOptions returns the defaults used for upstream sources
func DefaultOptions() Options {
	return Options{
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
		SuccessThreshold: 1,
	}
}

// CircuitBreaker counts consecutive failures of one source.
type CircuitBreaker struct {
	name string

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	mu           sync.RWMutex
	state        State
	failures     int
	successCount int
	trialPending bool
	lastTrip     time.Time
	lastError    string

	onTripCallback func(name, reason string)
	now            func() time.Time
}

// New creates a closed breaker for the named source
func New(name string, opts Options) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultOptions().FailureThreshold
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: opts.FailureThreshold,
		successThreshold: opts.SuccessThreshold,
		cooldown:         opts.Cooldown,
		state:            StateClosed,
		now:              time.Now,
	}
}

// WithCooldown sets a custom cooldown and returns the circuit breaker
func (cb *CircuitBreaker) WithCooldown(d time.Duration) *CircuitBreaker {
	cb.cooldown = d
	return cb
}

// WithSuccessThreshold sets the number of trial successes needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(name, reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Name returns the guarded source name
func (cb *CircuitBreaker) Name() string { return cb.name }

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed lets exactly one trial call through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastTrip) < cb.cooldown {
			return fmt.Errorf("%s: %w", cb.name, ErrOpen)
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.trialPending = true
		logrus.WithField("source", cb.name).Info("Circuit breaker half-open: testing source recovery")
		return nil
	case StateHalfOpen:
		if cb.trialPending {
			return fmt.Errorf("%s: %w", cb.name, ErrOpen)
		}
		cb.trialPending = true
		return nil
	}
	return nil
}

// RecordSuccess reports a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != StateHalfOpen {
		return
	}
	cb.trialPending = false
	cb.successCount++
	if cb.successCount >= cb.successThreshold {
		cb.state = StateClosed
		cb.successCount = 0
		cb.lastError = ""
		logrus.WithField("source", cb.name).Info("Circuit breaker closed: source has recovered")
	}
}

// RecordFailure reports a failed call
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.lastError = err.Error()
	}
	if cb.state == StateHalfOpen {
		cb.trialPending = false
		cb.trip("trial call failed")
		return
	}

	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.failureThreshold {
		cb.trip(fmt.Sprintf("%d consecutive failures", cb.failures))
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successCount = 0
	cb.trialPending = false
	cb.lastError = ""
	logrus.WithField("source", cb.name).Info("Circuit breaker manually reset to closed state")
}

// Status is a point-in-time view of a breaker
type Status struct {
	Name      string     `json:"name"`
	State     string     `json:"state"`
	Failures  int        `json:"failures"`
	LastTrip  *time.Time `json:"lastTrip,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Snapshot returns the breaker's current status
func (cb *CircuitBreaker) Snapshot() Status {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	s := Status{
		Name:      cb.name,
		State:     cb.state.String(),
		Failures:  cb.failures,
		LastError: cb.lastError,
	}
	if !cb.lastTrip.IsZero() {
		t := cb.lastTrip
		s.LastTrip = &t
	}
	return s
}

// trip opens the breaker; callers hold the lock
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = cb.now()
	cb.successCount = 0
	logrus.WithFields(logrus.Fields{
		"source":   cb.name,
		"cooldown": cb.cooldown,
	}).Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(cb.name, reason)
	}
}

// Group holds one breaker per source name, created on first use.
type Group struct {
	opts     Options
	onTrip   func(name, reason string)
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewGroup creates an empty group whose breakers share opts
func NewGroup(opts Options) *Group {
	return &Group{opts: opts, breakers: make(map[string]*CircuitBreaker)}
}

// WithTripCallback sets the trip callback of every breaker the group creates
func (g *Group) WithTripCallback(callback func(name, reason string)) *Group {
	g.onTrip = callback
	return g
}

// Get returns the breaker for name
func (g *Group) Get(name string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[name]; ok {
		return cb
	}
	cb := New(name, g.opts).WithTripCallback(g.onTrip)
	g.breakers[name] = cb
	return cb
}

// Snapshot returns the status of every breaker ordered by name
func (g *Group) Snapshot() []Status {
	g.mu.Lock()
	all := make([]*CircuitBreaker, 0, len(g.breakers))
	for _, cb := range g.breakers {
		all = append(all, cb)
	}
	g.mu.Unlock()

	out := make([]Status, 0, len(all))
	for _, cb := range all {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetAll closes every breaker in the group
func (g *Group) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, cb := range g.breakers {
		cb.Reset()
	}
}
