package resilience

import (
	"context"
	"time"
)

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// 0 disables retrying. Default: 0
	MaxRetries int

	// BaseDelay sets the linear backoff step: the delay before retry k
	// (1-indexed) is k * BaseDelay. Default: 100ms
	BaseDelay time.Duration

	// RetryIf determines if an error should trigger a retry.
	// Default: network, timeout, and upstream server errors retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with linear backoff. Delays grow linearly rather
// than exponentially so the full schedule is deterministic.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return Retryable(ClassOf(err)) }
	}

	return &Retry{config: config}
}

// Execute runs the operation with retry logic. Any attempt that succeeds
// ends the sequence with success; exhausting all retries returns the last
// error unchanged.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}

		if attempt == r.config.MaxRetries {
			break
		}

		// Retry k is delayed by k * BaseDelay.
		delay := time.Duration(attempt+1) * r.config.BaseDelay

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
