// Package circuitstate holds the single shared registry of circuit breaker
// state. Every component that needs to know whether a service is reachable
// reads this registry; only breaker transition logic writes to it. The
// registry exists so that no module ever keeps a private copy of a breaker
// flag that can drift out of sync with the rest of the process.
//
// Transitions are published to subscribers as typed circuit-open and
// circuit-close events, delivered at least once and in causal order per
// service.
package circuitstate
