package retry

import (
	"context"
	"fmt"
	"time"
)

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Err      error // Last attempt's error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. Exhausting attempts on a retryable error yields
// *ExhaustedError; a non-retryable error is returned as is.
func Do[T any](ctx context.Context, policy *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.Config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := policy.CalculateDelay(attempt)
			if policy.OnRetry != nil {
				policy.OnRetry(attempt, lastErr, delay)
			}
			if delay > 0 {
				select {
				case <-ctx.Done():
					return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
				case <-time.After(delay):
				}
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !policy.ShouldRetry(err) {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Err: lastErr, Attempts: attempts}
}
