// Package retry provides a context-aware exponential backoff executor.
//
// The executor does not classify errors itself. An operation that hits a
// failure it knows is permanent wraps it with Fatal so the loop stops and
// the original error surfaces unchanged.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/kineticare/kineticare-backend/internal/pkg/httpx"
)

const maxBackoff = 10 * time.Second

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as non-retryable. Do returns the original err immediately.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// Do calls op until it succeeds, returning its value. After a retryable
// failure it sleeps baseDelay * 2^attempt (jittered, capped) and tries
// again, up to maxAttempts additional attempts, so op runs at most
// maxAttempts+1 times. The last error is returned unchanged, never wrapped.
// Cancelling ctx aborts the backoff sleep and returns ctx.Err().
func Do[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func() (T, error)) (T, error) {
	var zero T
	if maxAttempts < 0 {
		maxAttempts = 0
	}

	delay := baseDelay
	var lastErr error
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		val, err := op()
		if err == nil {
			return val, nil
		}

		var fe *fatalError
		if errors.As(err, &fe) {
			return zero, fe.err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		sleepFor := delay
		if sleepFor > maxBackoff {
			sleepFor = maxBackoff
		}
		sleepFor = httpx.JitterSleep(sleepFor)

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return zero, lastErr
}
