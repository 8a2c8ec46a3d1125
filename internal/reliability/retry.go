// Package reliability provides the bounded-retry helper used by the price
// adapter's database loads.
package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig bounds how a retryable call is retried.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Defaults per call site, matching the timeout/retry table in the engine's
// concurrency model: ~3 attempts, exponential backoff.
var (
	DatabaseRetry = RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
	CacheRetry    = RetryConfig{MaxAttempts: 2, InitialDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
	BrokerRetry   = RetryConfig{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
)

// Retry runs fn up to cfg.MaxAttempts times, backing off exponentially
// between attempts, stopping early if ctx is cancelled or isRetryable(err)
// returns false. The final error is returned if all attempts are exhausted.
func Retry[T any](ctx context.Context, log zerolog.Logger, cfg RetryConfig, isRetryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying after transient failure")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, lastErr
}
