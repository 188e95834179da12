// Package httpx provides the shared remote-error taxonomy and retry policy
// used by every outbound HTTP client in toxicrawl.
package httpx

import (
	"errors"
	"fmt"
)

// Define static errors
var (
	// ErrNotFound is returned for HTTP 404 responses. Permanent: never retried.
	ErrNotFound = errors.New("resource not found")
	// ErrRateLimited is returned for HTTP 429 responses. Transient: retried
	// with backoff, and scoring clients rotate credentials before retrying.
	ErrRateLimited = errors.New("rate limited")
)

// TransientError wraps a server-side or network failure that is worth
// retrying (HTTP 5xx, timeouts, connection resets).
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient remote error (status %d): %v", e.Status, e.Err)
	}

	return fmt.Sprintf("transient remote error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err belongs to the transient class of the
// taxonomy: rate limits, 5xx responses, and network failures. Permanent
// errors (404, malformed JSON) are not retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var transient *TransientError

	return errors.As(err, &transient)
}
