// Package breaker implements the circuit breaker that guards every call to
// the remote document store.
//
// The breaker tracks consecutive failures across all operations sharing the
// client. Once the failure threshold is reached the circuit opens and calls
// fail fast without touching the network, giving the remote system time to
// recover. After the reset timeout a single probing state (half-open) decides
// whether to close the circuit again.
//
// State machine:
//
//	Closed    -> Open      failure count reaches the threshold
//	Open      -> HalfOpen  reset timeout elapsed since the state change
//	HalfOpen  -> Closed    next recorded outcome is a success
//	HalfOpen  -> Open      next recorded outcome is a failure
//
// Thread safety:
// All state is guarded by one mutex, so a check-then-transition sequence is
// never interleaved between concurrent callers. Transitions are applied in
// the order operations complete; there is no fairness guarantee.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State identifies the breaker position.
type State int

const (
	// StateClosed is normal operation: calls pass through.
	StateClosed State = iota
	// StateOpen fast-fails every call without a network attempt.
	StateOpen
	// StateHalfOpen lets calls through to probe the remote system.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow while the circuit is open and the reset
// timeout has not elapsed. It carries no underlying network error.
var ErrOpen = errors.New("circuit breaker is open")

const (
	// DefaultThreshold is the consecutive-failure count that opens the circuit.
	DefaultThreshold = 5
	// DefaultResetTimeout is how long the circuit stays open before probing.
	DefaultResetTimeout = 60 * time.Second
)

// Config holds breaker tuning. Zero values select the defaults.
type Config struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int

	// ResetTimeout is the cooldown before an open circuit allows a probe.
	ResetTimeout time.Duration
}

// Breaker is a single shared circuit breaker instance. The zero value is not
// usable; create one with New.
type Breaker struct {
	mu              sync.Mutex
	threshold       int
	resetTimeout    time.Duration
	failures        int
	state           State
	lastFailure     time.Time
	lastStateChange time.Time

	// now is replaceable in tests.
	now func() time.Time

	// onStateChange, if set, is invoked (outside the lock is not needed;
	// callers only record metrics) after every transition.
	onStateChange func(State)
}

// New creates a breaker in the closed state.
func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}

	b := &Breaker{
		threshold:    cfg.Threshold,
		resetTimeout: cfg.ResetTimeout,
		state:        StateClosed,
	}
	b.now = time.Now
	b.lastStateChange = b.now()
	return b
}

// OnStateChange registers a callback invoked after every state transition,
// with the new state. Used for metrics; must not call back into the breaker.
func (b *Breaker) OnStateChange(fn func(State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a call may proceed. While open and inside the reset
// timeout it returns ErrOpen; once the timeout elapses the breaker moves to
// half-open and the call is let through as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastStateChange) < b.resetTimeout {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
	}

	return nil
}

// RecordSuccess notes a successful call. Closes the circuit and resets the
// failure count from any state.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure notes a failed call. A failure while half-open reopens the
// circuit immediately; while closed, reaching the threshold opens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
	case StateClosed:
		if b.failures >= b.threshold {
			b.transition(StateOpen)
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// transition moves to a new state. Caller must hold the mutex.
func (b *Breaker) transition(next State) {
	b.state = next
	b.lastStateChange = b.now()
	if next == StateClosed {
		b.failures = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(next)
	}
}
