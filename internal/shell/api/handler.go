// Package api provides HTTP handlers for the Fordon API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/plateworks/fordon/internal/core/vehicle"
	"github.com/plateworks/fordon/internal/shell/api/openapi"
	"github.com/plateworks/fordon/internal/shell/lookup"
	"github.com/plateworks/fordon/internal/shell/store"
	"github.com/plateworks/fordon/internal/shell/upstream"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	lookups *lookup.Service
	store   store.Store
	logger  *slog.Logger
	openapi *openapi.Generator

	// cfClearanceSet reports whether a cf_clearance cookie was configured.
	// Lookups still work without one until the upstream challenges.
	cfClearanceSet bool
}

// NewHandler creates a new API handler. cfClearanceSet reports whether
// the upstream client carries a cf_clearance cookie.
func NewHandler(svc *lookup.Service, s store.Store, cfClearanceSet bool, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	h := &Handler{
		lookups:        svc,
		store:          s,
		logger:         l,
		openapi:        newSpecGenerator(),
		cfClearanceSet: cfClearanceSet,
	}
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API documentation
	r.Get("/openapi.json", h.openapi.Handler())
	r.Get("/docs", h.handleDocs)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.jsonContentType)

		r.Route("/vehicles/{regnr}", func(r chi.Router) {
			r.Get("/", h.handleGetVehicle)
			r.Get("/owner", h.handleGetOwner)
			r.Get("/address-vehicles", h.handleGetAddressVehicles)
		})
		r.Get("/profiles/{id}", h.handleGetProfile)
		r.Get("/lookups", h.handleListLookups)
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	checks := make(map[string]string)

	// Store is created before the server starts listening; a failing
	// count means the database has gone away since.
	if _, err := h.store.CountLookupEvents(r.Context()); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	if h.cfClearanceSet {
		checks["upstream"] = "configured"
	} else {
		checks["upstream"] = "no_cf_clearance"
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Lookup Handlers
// =============================================================================

func (h *Handler) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	regnr := chi.URLParam(r, "regnr")
	v, err := h.lookups.Vehicle(r.Context(), regnr, lookupOptions(r))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	regnr := chi.URLParam(r, "regnr")
	o, err := h.lookups.OwnerByRegnr(r.Context(), regnr, lookupOptions(r))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "profile id is required", "validation_error")
		return
	}
	p, err := h.lookups.OwnerProfile(r.Context(), id, lookupOptions(r))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleGetAddressVehicles(w http.ResponseWriter, r *http.Request) {
	regnr := chi.URLParam(r, "regnr")
	av, err := h.lookups.AddressVehicles(r.Context(), regnr, lookupOptions(r))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, av)
}

func (h *Handler) handleListLookups(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", "validation_error")
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer", "validation_error")
			return
		}
		opts.Offset = n
	}
	opts = opts.Normalize()

	events, total, err := h.lookups.Events(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list lookup events", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list lookups", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, ListLookupsResponse{
		Lookups: events,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// lookupOptions derives lookup options from request query parameters.
// ?refresh=1 bypasses both cache tiers and always fetches upstream.
func lookupOptions(r *http.Request) lookup.Options {
	refresh := r.URL.Query().Get("refresh")
	return lookup.Options{BypassCache: refresh == "1" || refresh == "true"}
}

// writeLookupError maps lookup and upstream errors to HTTP responses.
func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vehicle.ErrRegnrEmpty),
		errors.Is(err, vehicle.ErrRegnrTooShort),
		errors.Is(err, vehicle.ErrRegnrTooLong),
		errors.Is(err, vehicle.ErrRegnrInvalid):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, lookup.ErrOwnerNotFound):
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, upstream.ErrBlocked):
		h.writeError(w, http.StatusForbidden, err.Error(), "upstream_blocked")
	case errors.Is(err, upstream.ErrUpstream), errors.Is(err, upstream.ErrUnreachable):
		h.writeError(w, http.StatusBadGateway, err.Error(), "upstream_error")
	default:
		h.logger.Error("lookup failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "lookup failed", "internal_error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
