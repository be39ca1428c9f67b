// Package observe wires the ambient observability for the resilience layer:
// zap logger construction and the Prometheus collectors that track request
// outcomes and circuit breaker state.
package observe
