package util

import (
	"context"
	"time"
)

// maxRetryDelay caps the exponential backoff so a long attempt chain never
// sleeps for minutes between calls.
const maxRetryDelay = 30 * time.Second

// Retry calls fn up to maxAttempts times, doubling the sleep between attempts
// starting from baseDelay. It returns nil as soon as fn succeeds, the context
// error if the context is cancelled while waiting, and otherwise the error
// from the final attempt.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return lastErr
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
