package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/memory"
)

const (
	// DefaultTimeout bounds each backend call.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the base backoff, doubled per attempt.
	DefaultRetryDelay = 200 * time.Millisecond
)

// RetryPolicy holds the shared timeout/backoff settings for adapter calls.
type RetryPolicy struct {
	// Timeout bounds each individual attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the retry count after the first attempt. Negative
	// means no retries; zero means DefaultMaxRetries.
	MaxRetries int

	// RetryDelay is the base backoff delay. Zero means DefaultRetryDelay.
	RetryDelay time.Duration
}

func (p RetryPolicy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

func (p RetryPolicy) maxRetries() int {
	if p.MaxRetries < 0 {
		return 0
	}
	if p.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	return p.MaxRetries
}

func (p RetryPolicy) retryDelay() time.Duration {
	if p.RetryDelay <= 0 {
		return DefaultRetryDelay
	}
	return p.RetryDelay
}

// permanentError marks a failure that must not be retried (4xx responses).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do gives up immediately.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// StatusError converts an HTTP response status into a retryable or
// permanent error. 5xx is transient; 4xx is permanent and never retried.
func StatusError(status int, body string) error {
	err := fmt.Errorf("backend returned status %d: %s", status, body)
	if status >= 400 && status < 500 {
		return Permanent(err)
	}
	return err
}

// Do runs fn with the policy's per-attempt timeout, retrying transient
// failures with exponential backoff. Exhausted retries and transport
// failures are reported as memory.ErrBackendUnavailable; permanent errors
// surface unwrapped after the first attempt.
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.maxRetries() + 1
	delay := policy.retryDelay()

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", memory.ErrBackendUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.timeout())
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err

		// The caller's deadline is gone; further attempts are pointless.
		if ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("%w: after %d attempts: %w", memory.ErrBackendUnavailable, attempts, lastErr)
}
