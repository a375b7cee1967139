package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrMaxRetriesExceeded wraps the last error once retry attempts run out.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when no request token is available in time.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when no request slot frees up in time.
	ErrBulkheadFull = errors.New("resilience: too many concurrent requests")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("resilience: request timed out")
)
