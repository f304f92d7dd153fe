package remote

import (
	"context"
	"time"
)

// Retry calls fn up to maxAttempts times with exponential backoff
// (500ms, 1s, 2s...). fn is always called at least once. Errors that are
// not retryable are returned at once.
func Retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	return retry(ctx, maxAttempts, 500*time.Millisecond, fn)
}

func retry[T any](ctx context.Context, maxAttempts int, base time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	maxAttempts = max(maxAttempts, 1)
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return zero, err
		}
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * base
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
