package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/plateworks/fordon/internal/core/vehicle"
	"github.com/plateworks/fordon/internal/shell/lookup"
	"github.com/plateworks/fordon/internal/shell/store"
	"github.com/plateworks/fordon/internal/shell/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Stubs
// =============================================================================

type stubUpstream struct {
	vehicleHTML string
	vehicleErr  error
	profileHTML string
	profileErr  error
}

func (s *stubUpstream) FetchVehiclePage(ctx context.Context, regnr string) (string, error) {
	return s.vehicleHTML, s.vehicleErr
}

func (s *stubUpstream) FetchOwnerProfilePage(ctx context.Context, profileID string) (string, error) {
	return s.profileHTML, s.profileErr
}

func (s *stubUpstream) FetchOwnerVehiclesFragment(ctx context.Context, profileID string) (string, error) {
	return "", upstream.ErrUpstream
}

type stubStore struct {
	mu     sync.Mutex
	pages  map[string]*store.CachedPage
	events []vehicle.LookupEvent
}

func newStubStore() *stubStore {
	return &stubStore{pages: make(map[string]*store.CachedPage)}
}

func (s *stubStore) GetCachedPage(ctx context.Context, cacheKey string) (*store.CachedPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[cacheKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *stubStore) PutCachedPage(ctx context.Context, page *store.CachedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.CacheKey] = page
	return nil
}

func (s *stubStore) DeleteExpiredPages(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (s *stubStore) CreateLookupEvent(ctx context.Context, event *vehicle.LookupEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *stubStore) ListLookupEvents(ctx context.Context, opts store.ListOptions) ([]vehicle.LookupEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vehicle.LookupEvent(nil), s.events...), nil
}

func (s *stubStore) CountLookupEvents(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), nil
}

func (s *stubStore) Close() error { return nil }

const vehiclePageHTML = `<!DOCTYPE html>
<html>
<head><title>ABC123 Volvo V70 - Biluppgifter.se</title></head>
<body>
<section id="basics">
  <h2>Fordonsuppgifter</h2>
  <ul>
    <li><span class="label">Fabrikat</span><span class="value">Volvo</span></li>
    <li><span class="label">Modell</span><span class="value">V70</span></li>
  </ul>
</section>
</body>
</html>`

func newTestHandler(t *testing.T, up upstream.Client) (*Handler, *stubStore) {
	t.Helper()
	st := newStubStore()
	svc, err := lookup.NewService(up, st, lookup.DefaultConfig(), nil)
	require.NoError(t, err)
	return NewHandler(svc, st, true, nil), st
}

// =============================================================================
// Tests
// =============================================================================

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleReady(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "configured", resp.Checks["upstream"])
}

func TestHandleReady_MissingCFClearance(t *testing.T) {
	st := newStubStore()
	svc, err := lookup.NewService(&stubUpstream{}, st, lookup.DefaultConfig(), nil)
	require.NoError(t, err)
	h := NewHandler(svc, st, false, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "no_cf_clearance", resp.Checks["upstream"])
}

func TestGetVehicle(t *testing.T) {
	h, st := newTestHandler(t, &stubUpstream{vehicleHTML: vehiclePageHTML})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/abc123/", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var v vehicle.Vehicle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "ABC123", v.Regnr)
	assert.Equal(t, "ABC123 Volvo V70", v.PageTitle)
	assert.Equal(t, "Volvo", v.Data["Fordonsuppgifter"]["Fabrikat"])

	// The lookup is recorded in the audit log.
	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.events, 1)
	assert.Equal(t, vehicle.LookupVehicle, st.events[0].Kind)
	assert.Equal(t, "ABC123", st.events[0].Query)
}

func TestGetVehicleInvalidRegnr(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/a/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Code)
}

func TestGetVehicleUpstreamBlocked(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{
		vehicleErr: upstream.NewUpstreamError("fetch vehicle page", "/fordon/abc123/", http.StatusForbidden, upstream.ErrBlocked),
	})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/abc123/", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "upstream_blocked", resp.Code)
}

func TestGetVehicleUpstreamDown(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{
		vehicleErr: upstream.NewUpstreamError("fetch vehicle page", "/fordon/abc123/", http.StatusBadGateway, upstream.ErrUpstream),
	})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/abc123/", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "upstream_error", resp.Code)
}

func TestGetOwnerNotFound(t *testing.T) {
	// A vehicle page with no owner section yields a 404 for owner lookups.
	h, _ := newTestHandler(t, &stubUpstream{vehicleHTML: vehiclePageHTML})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/abc123/owner", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Code)
}

func TestListLookups(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{vehicleHTML: vehiclePageHTML})
	router := h.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/abc123/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/lookups?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListLookupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 10, resp.Limit)
	require.Len(t, resp.Lookups, 1)
	assert.Equal(t, "ABC123", resp.Lookups[0].Query)
}

func TestListLookupsBadLimit(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/lookups?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenAPISpec(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var spec map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Equal(t, "3.0.3", spec["openapi"])

	paths, ok := spec["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/api/v1/vehicles/{regnr}")
	assert.Contains(t, paths, "/api/v1/lookups")
}

func TestDocsPage(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/openapi.json")
}

func TestCORSHeaders(t *testing.T) {
	h, _ := newTestHandler(t, &stubUpstream{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
