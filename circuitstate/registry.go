package circuitstate

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jusscott/risk-assessment-app-sub005/resilience"
)

// EventType identifies a circuit transition event.
type EventType int

const (
	// EventOpen fires when a circuit transitions to open.
	EventOpen EventType = iota
	// EventClose fires when a circuit transitions to closed.
	EventClose
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "circuit-open"
	case EventClose:
		return "circuit-close"
	default:
		return "unknown"
	}
}

// Event is a circuit transition notification.
type Event struct {
	Type    EventType
	Service string
	At      time.Time
}

// RegistryConfig configures the shared circuit state registry.
type RegistryConfig struct {
	// Defaults is the breaker configuration applied to services without
	// an explicit entry in Services.
	Defaults resilience.BreakerConfig

	// Services holds per-service breaker configuration overrides.
	Services map[string]resilience.BreakerConfig

	// Logger records transitions. Default: no-op logger.
	Logger *zap.Logger

	// Clock overrides the time source for event timestamps and breakers.
	Clock func() time.Time
}

// Registry is the process-wide, single-writer view of circuit breaker state.
// Breakers are created lazily, exactly one per service name, and live for
// the process lifetime. Only breaker transition logic mutates the records;
// every other component reads through the accessors.
//
// Transition events are delivered to subscribers at least once and in order
// per service; no ordering is promised across distinct services.
type Registry struct {
	config RegistryConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	breakers map[string]*resilience.Breaker

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int

	queueMu sync.Mutex
	queue   []Event
	wake    *sync.Cond
	closed  bool
	done    chan struct{}
}

// NewRegistry creates a registry and starts its event dispatcher.
func NewRegistry(config RegistryConfig) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Clock
	if now == nil {
		now = time.Now
	}

	r := &Registry{
		config:   config,
		logger:   logger,
		now:      now,
		breakers: make(map[string]*resilience.Breaker),
		subs:     make(map[int]func(Event)),
		done:     make(chan struct{}),
	}
	r.wake = sync.NewCond(&r.queueMu)

	go r.dispatch()

	return r
}

// Breaker returns the circuit breaker for the named service, creating it on
// first use. Repeated calls for the same name return the same breaker.
func (r *Registry) Breaker(service string) *resilience.Breaker {
	r.mu.RLock()
	b, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok = r.breakers[service]; ok {
		return b
	}

	cfg := r.config.Defaults
	if override, ok := r.config.Services[service]; ok {
		cfg = override
	}
	if cfg.Clock == nil {
		cfg.Clock = r.now
	}
	cfg.OnTransition = r.transitionHook(service)

	b = resilience.NewBreaker(service, cfg)
	r.breakers[service] = b
	return b
}

// transitionHook publishes open/close events for one service's breaker.
// The hook runs with the breaker lock held, so it only enqueues.
func (r *Registry) transitionHook(service string) func(from, to resilience.State) {
	return func(from, to resilience.State) {
		switch to {
		case resilience.StateOpen:
			r.publish(Event{Type: EventOpen, Service: service, At: r.now()})
		case resilience.StateClosed:
			r.publish(Event{Type: EventClose, Service: service, At: r.now()})
		case resilience.StateHalfOpen:
			// Probing is not an open/close signal; readers see the state
			// change through snapshots.
		}
	}
}

func (r *Registry) publish(ev Event) {
	r.queueMu.Lock()
	if !r.closed {
		r.queue = append(r.queue, ev)
		r.wake.Signal()
	}
	r.queueMu.Unlock()
}

// dispatch drains the event queue in publication order. A single dispatcher
// preserves per-service ordering.
func (r *Registry) dispatch() {
	defer close(r.done)

	for {
		r.queueMu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.wake.Wait()
		}
		if len(r.queue) == 0 && r.closed {
			r.queueMu.Unlock()
			return
		}
		batch := r.queue
		r.queue = nil
		r.queueMu.Unlock()

		for _, ev := range batch {
			r.deliver(ev)
		}
	}
}

func (r *Registry) deliver(ev Event) {
	switch ev.Type {
	case EventOpen:
		r.logger.Warn("circuit opened",
			zap.String("service", ev.Service),
			zap.Time("at", ev.At))
	case EventClose:
		r.logger.Info("circuit closed",
			zap.String("service", ev.Service),
			zap.Time("at", ev.At))
	}

	r.subMu.Lock()
	fns := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribe registers fn for transition events and returns a cancel
// function. fn is called from the dispatcher goroutine; events for a given
// service arrive in the order the transitions happened.
func (r *Registry) Subscribe(fn func(Event)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// Close stops the dispatcher after draining queued events.
func (r *Registry) Close() {
	r.queueMu.Lock()
	if r.closed {
		r.queueMu.Unlock()
		return
	}
	r.closed = true
	r.wake.Signal()
	r.queueMu.Unlock()

	<-r.done
}

// IsOpen reports whether the named service's circuit is currently open.
// Unknown services report false.
func (r *Registry) IsOpen(service string) bool {
	r.mu.RLock()
	b, ok := r.breakers[service]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return b.IsOpen()
}

// FallbackEnabled reports whether degraded-mode handling applies for the
// named service. It is derived from the live breaker state rather than
// stored separately, so it cannot drift out of sync.
func (r *Registry) FallbackEnabled(service string) bool {
	return r.IsOpen(service)
}

// Snapshot returns a copy of one service's breaker record.
func (r *Registry) Snapshot(service string) (resilience.Snapshot, bool) {
	r.mu.RLock()
	b, ok := r.breakers[service]
	r.mu.RUnlock()
	if !ok {
		return resilience.Snapshot{}, false
	}
	return b.Snapshot(), true
}

// SnapshotAll returns a copy of every breaker record.
func (r *Registry) SnapshotAll() map[string]resilience.Snapshot {
	r.mu.RLock()
	breakers := make(map[string]*resilience.Breaker, len(r.breakers))
	for name, b := range r.breakers {
		breakers[name] = b
	}
	r.mu.RUnlock()

	out := make(map[string]resilience.Snapshot, len(breakers))
	for name, b := range breakers {
		out[name] = b.Snapshot()
	}
	return out
}

// CircuitStatus is the wire shape of one entry in the circuit status map.
type CircuitStatus struct {
	Status         string `json:"status"`
	Failures       int    `json:"failures"`
	TotalRequests  int64  `json:"totalRequests"`
	TotalSuccesses int64  `json:"totalSuccesses"`
	TotalFailures  int64  `json:"totalFailures"`
}

// StatusMap returns the circuit status map served to operators. The
// contract is two-valued: half-open circuits report "closed" because they
// admit traffic.
func (r *Registry) StatusMap() map[string]CircuitStatus {
	snaps := r.SnapshotAll()

	out := make(map[string]CircuitStatus, len(snaps))
	for name, snap := range snaps {
		status := "closed"
		if snap.State == resilience.StateOpen {
			status = "open"
		}
		out[name] = CircuitStatus{
			Status:         status,
			Failures:       snap.ConsecutiveFailures,
			TotalRequests:  snap.TotalRequests,
			TotalSuccesses: snap.TotalSuccesses,
			TotalFailures:  snap.TotalFailures,
		}
	}
	return out
}

// ResetResult reports the outcome of an administrative circuit reset.
type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResetCircuit forces the named service's circuit closed and zeroes its
// counters. Resetting a service with no breaker record is reported as a
// failure rather than creating one.
func (r *Registry) ResetCircuit(service string) ResetResult {
	r.mu.RLock()
	b, ok := r.breakers[service]
	r.mu.RUnlock()

	if !ok {
		return ResetResult{Success: false, Message: "no circuit breaker for service " + service}
	}

	b.Reset()
	r.logger.Info("circuit reset", zap.String("service", service))
	return ResetResult{Success: true, Message: "circuit breaker reset for " + service}
}
