// Package breaker implements the per-plugin circuit breaker (C18): a
// three-state failure isolator that stops dispatching event invocations to
// a plugin once it has failed repeatedly, and lets it back in gradually
// once a reset timeout elapses.
//
// No circuit-breaker library or hand-rolled breaker precedent exists
// elsewhere in this codebase, so this is authored fresh, stdlib only,
// directly against a three-state machine and configurable thresholds.
package breaker

import (
	"sync"
	"time"
)

// State is one of the circuit breaker's three states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls the thresholds governing state transitions.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	SuccessThreshold int
}

func (c *Config) setDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
}

// Breaker isolates one plugin's failures from the rest of the system. It is
// safe for concurrent use.
type Breaker struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	fails  int
	successes int
	openedAt time.Time
}

// New constructs a Breaker in the closed state.
func New(cfg Config) *Breaker {
	cfg.setDefaults()
	return &Breaker{cfg: cfg, state: StateClosed}
}

// State returns the breaker's current state, first advancing OPEN to
// HALF_OPEN if resetTimeout has elapsed since it tripped.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()
	return b.state
}

// Allow reports whether an event invocation may currently be dispatched to
// the plugin this breaker guards. It has the side effect of advancing OPEN
// to HALF_OPEN once the reset timeout has elapsed, since that transition is
// only observable by someone asking to proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()
	return b.state != StateOpen
}

// RecordSuccess reports a successful invocation. In CLOSED it resets the
// consecutive-failure counter. In HALF_OPEN it counts toward
// successThreshold, closing the circuit once reached. It has no effect in
// OPEN (successes can't occur there since Allow would have refused the
// call).
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()

	switch b.state {
	case StateClosed:
		b.fails = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.closeLocked()
		}
	}
}

// RecordFailure reports a failed invocation. In CLOSED it increments the
// consecutive-failure counter, tripping to OPEN once failureThreshold is
// reached. Any failure in HALF_OPEN immediately reopens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()

	switch b.state {
	case StateClosed:
		b.fails++
		if b.fails >= b.cfg.FailureThreshold {
			b.openLocked()
		}
	case StateHalfOpen:
		b.openLocked()
	}
}

func (b *Breaker) maybeResetLocked() {
	if b.state != StateOpen {
		return
	}
	if time.Since(b.openedAt) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.successes = 0
	}
}

func (b *Breaker) openLocked() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.fails = 0
	b.successes = 0
}

func (b *Breaker) closeLocked() {
	b.state = StateClosed
	b.fails = 0
	b.successes = 0
}
