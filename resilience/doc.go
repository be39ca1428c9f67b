// Package resilience provides the failure-handling primitives used on every
// inter-service call: a per-service circuit breaker, a deterministic
// linear-backoff retry policy, and the error taxonomy that decides which
// failures are transient.
//
// # Circuit breaker
//
// Each service gets one Breaker. The breaker opens after a run of
// consecutive failures or when the failure rate crosses a threshold, rejects
// all calls with ErrCircuitOpen while open, and after a cooldown admits a
// single probe call to test recovery:
//
//	cb := resilience.NewBreaker("payment-service", resilience.BreakerConfig{
//	    Threshold:    3,
//	    ResetTimeout: 30 * time.Second,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return callPaymentService(ctx)
//	})
//
// # Retry
//
// Retry delays grow linearly (k * BaseDelay before retry k) so schedules are
// exactly reproducible in tests. Only network, timeout, and 5xx failures are
// retried; 4xx responses surface immediately:
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxRetries: 3,
//	    BaseDelay:  100 * time.Millisecond,
//	})
//
// Breakers and retries are composed by the client package: the retry loop
// runs inside one breaker-tracked outcome, so a sequence that eventually
// succeeds counts as a single success.
package resilience
