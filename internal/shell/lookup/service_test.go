package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateworks/fordon/internal/core/vehicle"
	"github.com/plateworks/fordon/internal/shell/store"
	"github.com/plateworks/fordon/internal/shell/upstream"
)

// =============================================================================
// Test Helpers
// =============================================================================

const testVehicleHTML = `<html>
<head><title>Volvo V70 (XBD134) - Biluppgifter.se</title></head>
<body>
<section id="owner-history">
  <h2>Ägare</h2>
  <p>Ägs av <a href="/brukare/prof1/">Johan Andersson</a> <em>från Solna</em>.</p>
</body></html>`

const testOrphanVehicleHTML = `<html>
<head><title>Okänt fordon - Biluppgifter.se</title></head><body></body></html>`

const testProfileHTML = `<html><body>
<div class="action-box"><strong>Adress</strong><p>Storgatan 12</p><p>17236 Sundbyberg</p></div>
<section><h2>Johans fordon</h2>
<ul><li><a href="/fordon/xbd134/">Volvo V70 (2016)</a></li></ul></section>
</body></html>`

const testFragmentHTML = `<table><tr class="itrafik">
<td><a href="/fordon/xbd134/">Volvo V70</a></td>
<td class="mono">xbd134</td><td>2016</td></tr></table>`

// stubUpstream implements upstream.Client for testing.
type stubUpstream struct {
	vehicleHTML  string
	profileHTML  string
	fragmentHTML string
	vehicleErr   error
	profileErr   error
	fragmentErr  error

	vehicleCalls  int
	profileCalls  int
	fragmentCalls int
}

func (u *stubUpstream) FetchVehiclePage(ctx context.Context, regnr string) (string, error) {
	u.vehicleCalls++
	return u.vehicleHTML, u.vehicleErr
}

func (u *stubUpstream) FetchOwnerProfilePage(ctx context.Context, profileID string) (string, error) {
	u.profileCalls++
	return u.profileHTML, u.profileErr
}

func (u *stubUpstream) FetchOwnerVehiclesFragment(ctx context.Context, profileID string) (string, error) {
	u.fragmentCalls++
	return u.fragmentHTML, u.fragmentErr
}

// stubStore implements store.Store for testing.
type stubStore struct {
	pages  map[string]*store.CachedPage
	events []vehicle.LookupEvent
}

func newStubStore() *stubStore {
	return &stubStore{pages: make(map[string]*store.CachedPage)}
}

func (s *stubStore) GetCachedPage(ctx context.Context, key string) (*store.CachedPage, error) {
	page, ok := s.pages[key]
	if !ok {
		return nil, store.NewStoreError("GetCachedPage", "cached_page", key, "not found", store.ErrNotFound)
	}
	return page, nil
}

func (s *stubStore) PutCachedPage(ctx context.Context, page *store.CachedPage) error {
	s.pages[page.CacheKey] = page
	return nil
}

func (s *stubStore) DeleteExpiredPages(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	for key, page := range s.pages {
		if page.Expired(now) {
			delete(s.pages, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *stubStore) CreateLookupEvent(ctx context.Context, event *vehicle.LookupEvent) error {
	s.events = append(s.events, *event)
	return nil
}

func (s *stubStore) ListLookupEvents(ctx context.Context, opts store.ListOptions) ([]vehicle.LookupEvent, error) {
	return s.events, nil
}

func (s *stubStore) CountLookupEvents(ctx context.Context) (int, error) {
	return len(s.events), nil
}

func (s *stubStore) Close() error { return nil }

func newTestService(t *testing.T, up upstream.Client, st store.Store) *Service {
	t.Helper()
	svc, err := NewService(up, st, DefaultConfig(), nil)
	require.NoError(t, err)
	return svc
}

// =============================================================================
// Vehicle Lookup Tests
// =============================================================================

func TestVehicle_FetchesAndCaches(t *testing.T) {
	up := &stubUpstream{vehicleHTML: testVehicleHTML}
	st := newStubStore()
	svc := newTestService(t, up, st)
	ctx := context.Background()

	v, err := svc.Vehicle(ctx, "xbd134", Options{})
	require.NoError(t, err)
	assert.Equal(t, "XBD134", v.Regnr)
	assert.Equal(t, "Volvo V70 (XBD134)", v.PageTitle)
	assert.Equal(t, 1, up.vehicleCalls)
	assert.Contains(t, st.pages, "vehicle:XBD134")

	// Second call is served from cache.
	_, err = svc.Vehicle(ctx, "XBD134", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, up.vehicleCalls)

	require.Len(t, st.events, 2)
	assert.False(t, st.events[0].CacheHit)
	assert.True(t, st.events[1].CacheHit)
	assert.Equal(t, vehicle.LookupVehicle, st.events[0].Kind)
}

func TestVehicle_BypassCache(t *testing.T) {
	up := &stubUpstream{vehicleHTML: testVehicleHTML}
	st := newStubStore()
	svc := newTestService(t, up, st)
	ctx := context.Background()

	_, err := svc.Vehicle(ctx, "XBD134", Options{})
	require.NoError(t, err)

	_, err = svc.Vehicle(ctx, "XBD134", Options{BypassCache: true})
	require.NoError(t, err)
	assert.Equal(t, 2, up.vehicleCalls)
}

func TestVehicle_ExpiredStoreEntryIsAMiss(t *testing.T) {
	up := &stubUpstream{vehicleHTML: testVehicleHTML}
	st := newStubStore()
	st.pages["vehicle:XBD134"] = &store.CachedPage{
		CacheKey:  "vehicle:XBD134",
		Kind:      vehicle.LookupVehicle,
		Payload:   []byte(`{"regnr":"XBD134"}`),
		FetchedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-45 * time.Minute),
	}
	svc := newTestService(t, up, st)

	_, err := svc.Vehicle(context.Background(), "XBD134", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, up.vehicleCalls)
}

func TestVehicle_ExpiredMemoryEntryIsAMiss(t *testing.T) {
	up := &stubUpstream{vehicleHTML: testVehicleHTML}
	st := newStubStore()
	svc, err := NewService(up, st, Config{CacheTTL: 20 * time.Millisecond}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Vehicle(ctx, "XBD134", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, up.vehicleCalls)

	// Within the TTL the memory tier serves the record.
	_, err = svc.Vehicle(ctx, "XBD134", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, up.vehicleCalls)

	time.Sleep(50 * time.Millisecond)

	// Past the TTL both tiers treat the entry as a miss.
	_, err = svc.Vehicle(ctx, "XBD134", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, up.vehicleCalls)
}

func TestVehicle_InvalidRegnr(t *testing.T) {
	svc := newTestService(t, &stubUpstream{}, newStubStore())

	_, err := svc.Vehicle(context.Background(), "not a plate!", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, vehicle.ErrRegnrInvalid)
}

func TestVehicle_UpstreamErrorPropagates(t *testing.T) {
	up := &stubUpstream{vehicleErr: upstream.NewUpstreamError("FetchVehiclePage", "/fordon/xbd134/", 403, upstream.ErrBlocked)}
	svc := newTestService(t, up, newStubStore())

	_, err := svc.Vehicle(context.Background(), "XBD134", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrBlocked)
}

// =============================================================================
// Owner Lookup Tests
// =============================================================================

func TestOwnerByRegnr_ResolvesProfile(t *testing.T) {
	up := &stubUpstream{
		vehicleHTML:  testVehicleHTML,
		profileHTML:  testProfileHTML,
		fragmentHTML: testFragmentHTML,
	}
	st := newStubStore()
	svc := newTestService(t, up, st)

	ol, err := svc.OwnerByRegnr(context.Background(), "XBD134", Options{})
	require.NoError(t, err)

	assert.Equal(t, "XBD134", ol.Regnr)
	assert.Equal(t, "Volvo V70 (XBD134)", ol.VehicleTitle)
	assert.Equal(t, "prof1", ol.OwnerProfile.ProfileID)
	assert.Equal(t, "Storgatan 12", ol.OwnerProfile.Address)
	assert.NotNil(t, ol.OwnerHistory)

	// The fragment upgraded the vehicle list with table rows.
	require.Len(t, ol.OwnerProfile.Vehicles, 1)
	assert.Equal(t, vehicle.StatusInTraffic, ol.OwnerProfile.Vehicles[0].Status)

	// One audit event per public operation.
	require.Len(t, st.events, 1)
	assert.Equal(t, vehicle.LookupOwner, st.events[0].Kind)
}

func TestOwnerByRegnr_NoOwnerLink(t *testing.T) {
	up := &stubUpstream{vehicleHTML: testOrphanVehicleHTML}
	svc := newTestService(t, up, newStubStore())

	_, err := svc.OwnerByRegnr(context.Background(), "XBD134", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOwnerNotFound)
}

func TestOwnerProfile_FragmentFailureKeepsLinkList(t *testing.T) {
	up := &stubUpstream{
		profileHTML: testProfileHTML,
		fragmentErr: errors.New("fragment timed out"),
	}
	svc := newTestService(t, up, newStubStore())

	profile, err := svc.OwnerProfile(context.Background(), "prof1", Options{})
	require.NoError(t, err)

	require.Len(t, profile.Vehicles, 1)
	assert.Equal(t, "XBD134", profile.Vehicles[0].Regnr)
	assert.Equal(t, "Volvo V70 (2016)", profile.Vehicles[0].Model)
	assert.Equal(t, vehicle.StatusUnknown, profile.Vehicles[0].Status)
}

func TestOwnerProfile_EmptyFragmentReplacesLinkList(t *testing.T) {
	// A fragment that loads but lists no vehicles is authoritative: the
	// link-derived rows from the profile page are discarded.
	up := &stubUpstream{
		profileHTML:  testProfileHTML,
		fragmentHTML: `<table></table>`,
	}
	svc := newTestService(t, up, newStubStore())

	profile, err := svc.OwnerProfile(context.Background(), "prof1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, up.fragmentCalls)
	assert.Empty(t, profile.Vehicles)
	assert.NotNil(t, profile.Vehicles)
}

// =============================================================================
// Address Vehicles Tests
// =============================================================================

func TestAddressVehicles_Aggregates(t *testing.T) {
	up := &stubUpstream{
		vehicleHTML:  testVehicleHTML,
		profileHTML:  testProfileHTML,
		fragmentHTML: testFragmentHTML,
	}
	svc := newTestService(t, up, newStubStore())

	av, err := svc.AddressVehicles(context.Background(), "XBD134", Options{})
	require.NoError(t, err)

	assert.Equal(t, "XBD134", av.Regnr)
	assert.Equal(t, "Storgatan 12", av.Address)
	assert.Equal(t, "17236", av.PostalCode)
	assert.Equal(t, "Sundbyberg", av.PostalCity)
	assert.Len(t, av.OwnerVehicles, 1)
	assert.NotNil(t, av.AddressVehicles)
}

// =============================================================================
// Events Tests
// =============================================================================

func TestEvents_ReturnsAuditLog(t *testing.T) {
	up := &stubUpstream{vehicleHTML: testVehicleHTML}
	st := newStubStore()
	svc := newTestService(t, up, st)
	ctx := context.Background()

	_, err := svc.Vehicle(ctx, "XBD134", Options{})
	require.NoError(t, err)

	events, total, err := svc.Events(ctx, store.DefaultListOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "XBD134", events[0].Query)
}
