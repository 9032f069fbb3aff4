// Package upstream provides the HTTP client for the biluppgifter.se
// registry frontend.
package upstream

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrBlocked is returned when the upstream anti-bot layer rejects the
	// request. The cf_clearance cookie must be refreshed from a browser.
	ErrBlocked = errors.New("upstream blocked the request")

	// ErrUpstream is returned for any other non-200 upstream response.
	ErrUpstream = errors.New("unexpected upstream response")

	// ErrUnreachable is returned when the upstream host cannot be reached.
	ErrUnreachable = errors.New("upstream unreachable")
)

// UpstreamError wraps upstream failures with request context.
type UpstreamError struct {
	Op         string // Operation that failed (e.g., "FetchVehiclePage")
	Path       string // Request path
	StatusCode int    // HTTP status code, 0 for transport errors
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %v", e.Op, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(op, path string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Op:         op,
		Path:       path,
		StatusCode: statusCode,
		Err:        err,
	}
}
