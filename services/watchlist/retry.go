package watchlist

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	"twowatch/internal/docstore"
)

const (
	defaultMaxAttempts = 2
	defaultBaseDelay   = 300 * time.Millisecond
	maxBackoffShift    = 16
)

// RetryPolicy bounds how a remote operation is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts uint
	// Backoff returns the wait before retry n, where n starts at 0.
	Backoff func(n uint) time.Duration
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// DefaultRetryPolicy allows one retry of transient failures after 300ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Backoff:     ExponentialBackoff(defaultBaseDelay),
		Retryable:   IsTransient,
	}
}

// ExponentialBackoff doubles base on every retry.
func ExponentialBackoff(base time.Duration) func(uint) time.Duration {
	return func(n uint) time.Duration {
		if n > maxBackoffShift {
			n = maxBackoffShift
		}
		return base << n
	}
}

// IsTransient reports whether err signals temporary unavailability of the remote store.
func IsTransient(err error) bool {
	switch docstore.CodeOf(err) {
	case docstore.CodeUnavailable, docstore.CodeDeadlineExceeded, docstore.CodeAborted, docstore.CodeResourceExhausted:
		return true
	}
	return false
}

// Do runs op until it succeeds, fails with a non-retryable error or the attempt budget is spent.
// The last error is returned unwrapped so callers can classify it.
func (p RetryPolicy) Do(ctx context.Context, op func() error, onRetry func(n uint, err error)) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff(defaultBaseDelay)
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		// retry-go counts the first retry as n=1.
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if n > 0 {
				n--
			}
			return backoff(n)
		}),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}

	return retry.Do(op, opts...)
}
