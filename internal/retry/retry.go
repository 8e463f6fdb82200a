// Package retry provides a shared retry utility with linear backoff.
//
// Webhook delivery waits base*(attempt+1) between attempts, so the wait
// grows linearly and deterministically, with no jitter.
package retry

import (
	"context"
	"errors"
	"time"
)

// PermanentError wraps an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do will not retry it.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Do calls fn up to maxAttempts times, sleeping base*(n+1) after the n-th
// failed attempt (0-indexed). It stops early if:
//   - fn returns nil (success)
//   - fn returns a *PermanentError (not retryable)
//   - ctx is cancelled
//
// After the last failed attempt the error is returned without sleeping.
func Do(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}

		// Don't sleep after the last attempt.
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base * time.Duration(attempt+1)):
		}
	}

	return err
}
