package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jusscott/risk-assessment-app-sub005/circuitstate"
)

// Metrics holds the Prometheus collectors for the resilience layer.
type Metrics struct {
	// RequestDuration tracks outbound call latency per service and outcome.
	RequestDuration *prometheus.HistogramVec

	// RequestsTotal counts outbound calls per service and outcome. The
	// outcome label is "success" or the failure class.
	RequestsTotal *prometheus.CounterVec

	// RetriesTotal counts retry attempts per service.
	RetriesTotal *prometheus.CounterVec

	// CircuitState exposes the current breaker state per service
	// (0=closed, 1=open).
	CircuitState *prometheus.GaugeVec

	// CircuitTransitions counts open/close transitions per service.
	CircuitTransitions *prometheus.CounterVec
}

// NewMetrics registers the resilience collectors. A nil registerer gets a
// private throwaway registry so callers can pass nil to disable scraping.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resilience_request_duration_seconds",
			Help:    "Latency of outbound inter-service calls.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"service", "outcome"}),

		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_requests_total",
			Help: "Total outbound inter-service calls by outcome.",
		}, []string{"service", "outcome"}),

		RetriesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_retries_total",
			Help: "Total retry attempts per service.",
		}, []string{"service"}),

		CircuitState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "resilience_circuit_breaker_open",
			Help: "Whether the circuit breaker is open (0=closed, 1=open).",
		}, []string{"service"}),

		CircuitTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_circuit_transitions_total",
			Help: "Circuit breaker transitions by event type.",
		}, []string{"service", "event"}),
	}
}

// ObserveRequest records one completed call.
func (m *Metrics) ObserveRequest(service, outcome string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(service, outcome).Inc()
	m.RequestDuration.WithLabelValues(service, outcome).Observe(elapsed.Seconds())
}

// CircuitEventHandler returns a subscriber that mirrors registry events into
// the breaker gauges. Wire it with registry.Subscribe.
func (m *Metrics) CircuitEventHandler() func(circuitstate.Event) {
	return func(ev circuitstate.Event) {
		m.CircuitTransitions.WithLabelValues(ev.Service, ev.Type.String()).Inc()
		switch ev.Type {
		case circuitstate.EventOpen:
			m.CircuitState.WithLabelValues(ev.Service).Set(1)
		case circuitstate.EventClose:
			m.CircuitState.WithLabelValues(ev.Service).Set(0)
		}
	}
}
