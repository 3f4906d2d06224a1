package failover

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

// State is the breaker state
type State int32

const (
	// Closed lets traffic through
	Closed State = iota
	// Open rejects traffic until the open timeout elapses
	Open
	// HalfOpen lets a single probe through
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker is a circuit breaker guarding one cluster. A run of consecutive
// failures trips it; after the open timeout one probe acquisition is allowed
// and its outcome closes or re-opens the circuit.
type Breaker struct {
	state     atomic.Int32
	failures  atomic.Int32
	openUntil atomic.Int64 // unix nano when Open ends

	threshold   int32
	openTimeout time.Duration
	clock       clockwork.Clock
}

// NewBreaker constructs a breaker tripping after threshold consecutive failures
func NewBreaker(threshold int32, openTimeout time.Duration, clock clockwork.Clock) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if openTimeout <= 0 {
		openTimeout = 5 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Breaker{
		threshold:   threshold,
		openTimeout: openTimeout,
		clock:       clock,
	}
}

// State returns the current breaker state
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Allow reports whether an acquisition attempt may proceed
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case Closed:
		return true
	case Open:
		if b.clock.Now().UnixNano() < b.openUntil.Load() {
			return false
		}
		// open timeout elapsed, let one probe through
		return b.state.CompareAndSwap(int32(Open), int32(HalfOpen))
	default: // HalfOpen, a probe is already in flight
		return false
	}
}

// MarkSuccess records a successful acquisition and closes the circuit
func (b *Breaker) MarkSuccess() {
	b.failures.Store(0)
	b.state.Store(int32(Closed))
}

// MarkFailure records a failed acquisition, tripping the circuit when the
// threshold is reached or a half-open probe fails
func (b *Breaker) MarkFailure() {
	failures := b.failures.Inc()
	if State(b.state.Load()) == HalfOpen || failures >= b.threshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.openUntil.Store(b.clock.Now().Add(b.openTimeout).UnixNano())
	b.state.Store(int32(Open))
}
