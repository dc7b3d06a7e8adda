package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound             = errors.New("job not found")
	ErrInvalidSchedule         = errors.New("invalid schedule format")
	ErrNotConnected            = errors.New("integration is not connected")
	ErrReauthorizationRequired = errors.New("refresh token missing, reauthorization required")
	ErrRetriesExhausted        = errors.New("retries exhausted")
)

// ConfigurationError indicates a required secret or credential is absent or
// malformed. It is raised at startup or on first use and is not retryable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NetworkError wraps a transport-level failure reaching an upstream service.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError carries a non-success HTTP response status from an upstream
// service. Whether a given status is retryable is decided by the retry policy
// at the call site, not here.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// StatusCode extracts the HTTP status carried by err, unwrapping as needed.
// The second return is false when err carries no status.
func StatusCode(err error) (int, bool) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}
