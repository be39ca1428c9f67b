package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures before opening.
	// Default: 5
	Threshold int

	// ResetTimeout is how long the circuit stays open before admitting
	// a probe. Default: 30 seconds
	ResetTimeout time.Duration

	// ErrorThresholdPercentage opens the circuit when the failure rate
	// since the last close reaches this percentage, once MinimumRequests
	// outcomes have been recorded. Default: 50
	ErrorThresholdPercentage float64

	// MinimumRequests is the sample size required before the error-rate
	// check applies, so a fresh breaker cannot trip on its first failure.
	// Default: 10
	MinimumRequests int

	// OnTransition is called on every state change. It runs with the
	// breaker lock held and must not call back into the breaker.
	OnTransition func(from, to State)

	// Clock overrides the time source. Used by tests to step through the
	// reset window without sleeping.
	Clock func() time.Time
}

// Breaker is a per-service circuit breaker. The only legal transitions are
// Closed->Open, Open->HalfOpen, HalfOpen->Closed, and HalfOpen->Open.
type Breaker struct {
	service string
	config  BreakerConfig
	now     func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	totalRequests       int64
	totalSuccesses      int64
	totalFailures       int64
	openedAt            time.Time
	probeInFlight       bool
}

// NewBreaker creates a circuit breaker for the named service.
func NewBreaker(service string, config BreakerConfig) *Breaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.ErrorThresholdPercentage <= 0 {
		config.ErrorThresholdPercentage = 50
	}
	if config.MinimumRequests <= 0 {
		config.MinimumRequests = 10
	}
	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Breaker{
		service: service,
		config:  config,
		now:     now,
		state:   StateClosed,
	}
}

// Service returns the service name this breaker guards.
func (b *Breaker) Service() string {
	return b.service
}

// Execute runs the operation through the circuit breaker. When the circuit
// is open, or a half-open probe is already outstanding, it fails immediately
// with ErrCircuitOpen and the operation is never invoked.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := op(ctx)
	b.record(err == nil)
	return err
}

// admit decides whether a call may proceed. An open circuit whose reset
// window has elapsed admits the caller as the half-open probe; exactly one
// probe may be in flight, all other callers are rejected, never queued.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transitionLocked(StateHalfOpen)
		b.probeInFlight = true
		return nil

	case StateHalfOpen:
		if b.probeInFlight {
			return ErrCircuitOpen
		}
		b.probeInFlight = true
		return nil
	}

	return nil
}

// record feeds one call outcome into the counters and state machine. The
// whole retry sequence inside a call counts as a single outcome.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if success {
		b.totalSuccesses++
	} else {
		b.totalFailures++
	}

	switch b.state {
	case StateClosed:
		if success {
			b.consecutiveFailures = 0
			return
		}
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.Threshold || b.rateTrippedLocked() {
			b.openedAt = b.now()
			b.transitionLocked(StateOpen)
		}

	case StateHalfOpen:
		b.probeInFlight = false
		if success {
			b.resetCountersLocked()
			b.transitionLocked(StateClosed)
		} else {
			b.consecutiveFailures++
			b.openedAt = b.now()
			b.transitionLocked(StateOpen)
		}

	case StateOpen:
		// A call admitted before the circuit opened can finish after it;
		// its outcome only feeds the totals.
	}
}

func (b *Breaker) rateTrippedLocked() bool {
	if b.totalRequests < int64(b.config.MinimumRequests) {
		return false
	}
	rate := float64(b.totalFailures) / float64(b.totalRequests) * 100
	return rate >= b.config.ErrorThresholdPercentage
}

func (b *Breaker) resetCountersLocked() {
	b.consecutiveFailures = 0
	b.totalRequests = 0
	b.totalSuccesses = 0
	b.totalFailures = 0
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to != StateHalfOpen {
		b.probeInFlight = false
	}
	if b.config.OnTransition != nil {
		b.config.OnTransition(from, to)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether the circuit is currently rejecting calls outright.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Reset forces the circuit closed and zeroes all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetCountersLocked()
	b.openedAt = time.Time{}
	b.transitionLocked(StateClosed)
}

// Snapshot is a read-only copy of a breaker record.
type Snapshot struct {
	Service             string
	State               State
	ConsecutiveFailures int
	TotalRequests       int64
	TotalSuccesses      int64
	TotalFailures       int64
	OpenedAt            time.Time // zero unless the circuit has opened
}

// Snapshot returns a consistent copy of the breaker record.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Service:             b.service,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		TotalRequests:       b.totalRequests,
		TotalSuccesses:      b.totalSuccesses,
		TotalFailures:       b.totalFailures,
		OpenedAt:            b.openedAt,
	}
}
