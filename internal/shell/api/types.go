package api

import "github.com/plateworks/fordon/internal/core/vehicle"

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ListLookupsResponse is the response for listing the lookup audit log.
type ListLookupsResponse struct {
	Lookups []vehicle.LookupEvent `json:"lookups"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}
