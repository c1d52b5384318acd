package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrClientStatus marks a 4xx response (other than 429) that is never
	// retried.
	ErrClientStatus = errors.New("client error status")

	// ErrRetryableStatus marks a 5xx or 429 response.
	ErrRetryableStatus = errors.New("retryable status")

	// ErrInvalidURL marks a URL that cannot be turned into a request.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrTooManyRedirects is returned when a redirect chain exceeds
	// MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// FetchError describes a failed page fetch.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.Attempts <= 1 {
		return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Permanent reports whether the failure was a client error that retrying
// cannot fix.
func (e *FetchError) Permanent() bool {
	return isPermanent(e.Err)
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrClientStatus) || errors.Is(err, ErrInvalidURL)
}

// statusError builds the error for an unsuccessful HTTP status.
func statusError(code int, status string) error {
	if isRetryableStatus(code) {
		return fmt.Errorf("%w: HTTP %s", ErrRetryableStatus, status)
	}
	return fmt.Errorf("%w: HTTP %s", ErrClientStatus, status)
}

// isRetryableStatus reports whether an error status should be retried.
func isRetryableStatus(code int) bool {
	return code >= 500 || code == 429
}
