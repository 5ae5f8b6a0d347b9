package common

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
)

// Default retry constants for remote calls.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffCap  = 5 * time.Second
)

// RetryPolicy bounds how often and how patiently a remote call is retried.
// Waits double from BackoffBase and never exceed BackoffCap.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// NewDefaultRetryPolicy returns 3 attempts with 1s..5s exponential backoff
func NewDefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BackoffBase: DefaultBackoffBase,
		BackoffCap:  DefaultBackoffCap,
	}
}

// Backoff returns the wait before the given retry (attempt is 1-based: the wait after attempt N)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := p.BackoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.BackoffCap {
			break
		}
	}
	if p.BackoffCap > 0 && backoff > p.BackoffCap {
		backoff = p.BackoffCap
	}
	return backoff
}

// permanentError marks an error that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry returns it immediately.
// Use for malformed responses and client errors that cannot succeed on retry.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. The last error is returned unwrapped from Permanent.
func Retry(ctx context.Context, policy RetryPolicy, logger arbor.ILogger, operation string, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var p *permanentError
		if errors.As(lastErr, &p) {
			return p.err
		}

		if attempt == attempts {
			break
		}

		backoff := policy.Backoff(attempt)
		if logger != nil {
			logger.Warn().
				Err(lastErr).
				Str("operation", operation).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Dur("backoff", backoff).
				Msg("Remote call failed, retrying")
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	if logger != nil {
		logger.Error().
			Err(lastErr).
			Str("operation", operation).
			Int("attempts", attempts).
			Msg("Remote call failed after all attempts")
	}
	return lastErr
}
