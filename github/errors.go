package github

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a repository, path or branch does not exist.
// Callers treat it as "no content yet", not as a failure.
var ErrNotFound = errors.New("not found")

// ErrRateLimited is matched by errors returned after rate-limit retries are
// exhausted.
var ErrRateLimited = errors.New("github rate limit exceeded")

// RemoteFetchError is returned for any non-2xx response other than 404 and
// rate limiting.
type RemoteFetchError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("github returned %d for %s", e.StatusCode, e.URL)
}

// RateLimitError reports that a request was still rate limited after the
// configured number of retries.
type RateLimitError struct {
	URL        string
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github rate limit exceeded for %s after %d attempts (retry after %s)", e.URL, e.Attempts, e.RetryAfter)
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
