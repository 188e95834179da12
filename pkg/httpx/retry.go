package httpx

import (
	"context"
	"math"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry policy defaults shared by the collection and scoring clients.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second
	DefaultMultiplier  = 1.5
)

// RetryPolicy is an explicit retry policy: a maximum attempt count, an
// attempt-indexed backoff function, and a retryable-error predicate. A single
// policy value is shared by both the remote-collection clients and the
// scoring client.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff unit; attempt n sleeps BaseDelay * Multiplier^n.
	BaseDelay time.Duration
	// Multiplier escalates the backoff per attempt.
	Multiplier float64
	// Retryable classifies errors. Nil defaults to IsRetryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns the policy used in production: 4 attempts with
// 1.5^attempt-second backoff, retrying only transient errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
		Retryable:   IsRetryable,
	}
}

// Do runs op under the policy, sleeping between attempts. The last error is
// returned once attempts are exhausted; permanent errors abort immediately.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}

	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	attempt := 0

	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		delay := time.Duration(float64(baseDelay) * math.Pow(multiplier, float64(attempt)))
		attempt++

		return delay, false
	})

	return retry.Do(ctx, retry.WithMaxRetries(uint64(maxAttempts-1), backoff), func(ctx context.Context) error { //nolint:gosec // maxAttempts >= 1
		err := op(ctx)
		if err == nil {
			return nil
		}

		if retryable(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}
