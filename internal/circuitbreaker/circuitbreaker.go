// Package circuitbreaker implements the three-state protective gate used
// by both the AI coordinator (C4) and the infrastructure coordinator
// (C11) to stop hammering a failing downstream.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config governs the breaker's thresholds.
type Config struct {
	Threshold int           // consecutive failures before tripping open
	Cooldown  time.Duration // time open before allowing a half-open probe
}

// DefaultConfig matches the coordinator's documented defaults.
func DefaultConfig() Config {
	return Config{Threshold: 5, Cooldown: 30 * time.Second}
}

// Breaker is a single protected-resource circuit breaker. It is safe for
// concurrent use; all state is behind a single mutex per the concurrency
// model's "reads of open? are atomic and always precede downstream
// dispatch" rule.
type Breaker struct {
	mu              sync.Mutex
	cfg             Config
	state           State
	failureCount    int
	lastFailureAt   time.Time
	halfOpenInFlight bool
}

// New builds a Breaker starting in the closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// Allow reports whether a call may proceed, transitioning closed→open
// internally is never done here (that happens on RecordFailure); Allow
// only handles the open→half-open cooldown transition.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		// Only one probe in flight at a time.
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	case Open:
		if time.Since(b.lastFailureAt) > b.cfg.Cooldown {
			b.state = HalfOpen
			b.halfOpenInFlight = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess closes the breaker and resets the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.halfOpenInFlight = false
}

// RecordFailure increments the failure counter and trips the breaker open
// once the threshold is reached, or reopens immediately from half-open.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = time.Now()
	b.halfOpenInFlight = false

	if b.state == HalfOpen {
		b.state = Open
		return
	}

	b.failureCount++
	if b.failureCount >= b.cfg.Threshold {
		b.state = Open
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure counter.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
