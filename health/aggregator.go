package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jusscott/risk-assessment-app-sub005/circuitstate"
	"github.com/jusscott/risk-assessment-app-sub005/client"
	"github.com/jusscott/risk-assessment-app-sub005/resilience"
)

// Status values used in the aggregate report.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Target is one service the aggregator polls.
type Target struct {
	// Name is the service name, which is also its circuit breaker key.
	Name string

	// Path is the health endpoint path. Default: /health
	Path string
}

// Caller issues resilient requests. *client.Client satisfies it.
type Caller interface {
	Do(ctx context.Context, service string, opts *client.Options) (*client.Response, error)
}

var _ Caller = (*client.Client)(nil)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Targets are the services to poll.
	Targets []Target

	// CacheTTL is how long an aggregate report is served from cache.
	// Default: 10 seconds
	CacheTTL time.Duration

	// PollTimeout bounds one full polling round. Default: 5 seconds
	PollTimeout time.Duration

	// Logger records poll failures. Default: no-op logger.
	Logger *zap.Logger

	// Clock overrides the time source for cache expiry. Used by tests.
	Clock func() time.Time
}

// Aggregator produces one consolidated health report across all services.
// Polls go through the resilient client, so a hung or failing service
// cannot block the aggregator: its circuit breaker cuts it off. Downstream
// failures never surface as errors; unreachable services simply appear as
// unhealthy entries.
type Aggregator struct {
	config   AggregatorConfig
	client   Caller
	circuits *circuitstate.Registry
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	cached   *Report
	cachedAt time.Time
}

// NewAggregator creates a health aggregator polling through cli and reading
// breaker state from circuits.
func NewAggregator(config AggregatorConfig, cli Caller, circuits *circuitstate.Registry) *Aggregator {
	if config.CacheTTL <= 0 {
		config.CacheTTL = 10 * time.Second
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		config:   config,
		client:   cli,
		circuits: circuits,
		logger:   logger,
		now:      now,
	}
}

// Report is the aggregate health report. The JSON shape is a stable
// contract consumed by dashboards and ops tooling.
type Report struct {
	Success bool       `json:"success"`
	Status  string     `json:"status"`
	Data    ReportData `json:"data"`
}

// ReportData carries the per-service breakdown.
type ReportData struct {
	Timestamp         string                   `json:"timestamp"`
	ServicesTotal     int                      `json:"servicesTotal"`
	ServicesHealthy   int                      `json:"servicesHealthy"`
	ServicesDegraded  int                      `json:"servicesDegraded"`
	ServicesUnhealthy int                      `json:"servicesUnhealthy"`
	Services          map[string]ServiceReport `json:"services"`
}

// ServiceReport is one service's entry in the aggregate report.
type ServiceReport struct {
	Status         string        `json:"status"`
	CircuitBreaker CircuitReport `json:"circuitBreaker"`
}

// CircuitReport is the breaker view embedded in a service entry.
type CircuitReport struct {
	IsOpen         bool  `json:"isOpen"`
	Failures       int   `json:"failures"`
	TotalRequests  int64 `json:"totalRequests"`
	TotalSuccesses int64 `json:"totalSuccesses"`
	TotalFailures  int64 `json:"totalFailures"`
}

// Check returns the aggregate report, serving from cache while it is fresh.
// bypassCache forces an immediate poll of every target.
func (a *Aggregator) Check(ctx context.Context, bypassCache bool) Report {
	if !bypassCache {
		a.mu.Lock()
		if a.cached != nil && a.now().Sub(a.cachedAt) < a.config.CacheTTL {
			cached := *a.cached
			a.mu.Unlock()
			return cached
		}
		a.mu.Unlock()
	}

	report := a.poll(ctx)

	a.mu.Lock()
	a.cached = &report
	a.cachedAt = a.now()
	a.mu.Unlock()

	return report
}

// ResetCache drops the cached report. Breaker state is untouched.
func (a *Aggregator) ResetCache() {
	a.mu.Lock()
	a.cached = nil
	a.cachedAt = time.Time{}
	a.mu.Unlock()
}

// poll probes every target in parallel and merges the probe outcomes with
// the shared circuit state.
func (a *Aggregator) poll(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, a.config.PollTimeout)
	defer cancel()

	probeErrs := make([]error, len(a.config.Targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range a.config.Targets {
		i, target := i, target
		g.Go(func() error {
			path := target.Path
			if path == "" {
				path = "/health"
			}
			_, err := a.client.Do(gctx, target.Name, &client.Options{
				Method: http.MethodGet,
				Path:   path,
			})
			probeErrs[i] = err
			if err != nil {
				a.logger.Debug("health probe failed",
					zap.String("service", target.Name),
					zap.Error(err))
			}
			return nil // probe failures are reported, never propagated
		})
	}
	_ = g.Wait()

	services := make(map[string]ServiceReport, len(a.config.Targets))
	healthy, degraded, unhealthy := 0, 0, 0

	for i, target := range a.config.Targets {
		var circuit CircuitReport
		state := resilience.StateClosed
		if snap, ok := a.circuits.Snapshot(target.Name); ok {
			state = snap.State
			circuit = CircuitReport{
				IsOpen:         snap.State == resilience.StateOpen,
				Failures:       snap.ConsecutiveFailures,
				TotalRequests:  snap.TotalRequests,
				TotalSuccesses: snap.TotalSuccesses,
				TotalFailures:  snap.TotalFailures,
			}
		}

		status := StatusHealthy
		switch {
		case probeErrs[i] != nil || state == resilience.StateOpen:
			status = StatusUnhealthy
			unhealthy++
		case state == resilience.StateHalfOpen:
			status = StatusDegraded
			degraded++
		default:
			healthy++
		}

		services[target.Name] = ServiceReport{Status: status, CircuitBreaker: circuit}
	}

	return Report{
		Success: true,
		Status:  overallStatus(len(a.config.Targets), healthy, unhealthy),
		Data: ReportData{
			Timestamp:         a.now().UTC().Format(time.RFC3339),
			ServicesTotal:     len(a.config.Targets),
			ServicesHealthy:   healthy,
			ServicesDegraded:  degraded,
			ServicesUnhealthy: unhealthy,
			Services:          services,
		},
	}
}

// overallStatus folds the per-service counts into one status: healthy only
// when every service is, unhealthy only when every service is, degraded in
// between.
func overallStatus(total, healthy, unhealthy int) string {
	switch {
	case total == 0 || healthy == total:
		return StatusHealthy
	case unhealthy == total:
		return StatusUnhealthy
	default:
		return StatusDegraded
	}
}
