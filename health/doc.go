// Package health aggregates the health of every service behind one report.
// The aggregator polls each service's health endpoint through the resilient
// client, merges the probe outcomes with the shared circuit breaker state,
// and caches the result for a short TTL. The JSON report and circuit status
// map are stable contracts consumed by dashboards and ops tooling.
package health
