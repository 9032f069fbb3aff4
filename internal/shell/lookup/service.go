// Package lookup composes the upstream client, the HTML extractors and the
// two-tier cache into the lookup flows served by the API and the CLI.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/plateworks/fordon/internal/core/scrape"
	"github.com/plateworks/fordon/internal/core/vehicle"
	"github.com/plateworks/fordon/internal/shell/store"
	"github.com/plateworks/fordon/internal/shell/upstream"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrOwnerNotFound is returned when a vehicle page carries no link to
	// an owner profile.
	ErrOwnerNotFound = errors.New("no owner profile linked to this vehicle")
)

// =============================================================================
// Service
// =============================================================================

// Config configures the lookup service.
type Config struct {
	// CacheTTL is how long a parsed page stays fresh. Default: 15 minutes.
	CacheTTL time.Duration

	// LRUSize is the number of entries held in the in-memory cache tier.
	// Default: 512.
	LRUSize int
}

// DefaultConfig returns the default lookup service configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL: 15 * time.Minute,
		LRUSize:  512,
	}
}

// Options control a single lookup call.
type Options struct {
	// BypassCache forces a fresh upstream fetch. The result still
	// refreshes both cache tiers.
	BypassCache bool
}

// Service performs registry lookups with caching and audit logging.
type Service struct {
	upstream upstream.Client
	store    store.Store
	memory   *lru.Cache[string, memoryEntry]
	ttl      time.Duration
	logger   *slog.Logger
}

// memoryEntry is a cached payload in the memory tier. It carries the
// same expiry as the persistent row so both tiers age out together.
type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// NewService creates a new lookup service.
func NewService(up upstream.Client, s store.Store, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.LRUSize == 0 {
		cfg.LRUSize = 512
	}
	if logger == nil {
		logger = slog.Default()
	}

	memory, err := lru.New[string, memoryEntry](cfg.LRUSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &Service{
		upstream: up,
		store:    s,
		memory:   memory,
		ttl:      cfg.CacheTTL,
		logger:   logger,
	}, nil
}

// =============================================================================
// Lookup Flows
// =============================================================================

// Vehicle looks up the full registry record for a registration number.
func (s *Service) Vehicle(ctx context.Context, regnr string, opts Options) (*vehicle.Vehicle, error) {
	start := time.Now()

	regnr, err := vehicle.NormalizeRegnr(regnr)
	if err != nil {
		return nil, err
	}

	v, hit, err := s.vehicle(ctx, regnr, opts)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, vehicle.LookupVehicle, regnr, hit, start)
	return v, nil
}

// vehicle is the uncounted inner flow, shared by the composed lookups so
// each public operation records exactly one audit event.
func (s *Service) vehicle(ctx context.Context, regnr string, opts Options) (*vehicle.Vehicle, bool, error) {
	key := cacheKey(vehicle.LookupVehicle, regnr)

	if !opts.BypassCache {
		if payload, ok := s.getCached(ctx, key); ok {
			var v vehicle.Vehicle
			if err := json.Unmarshal(payload, &v); err == nil {
				return &v, true, nil
			}
			s.logger.Warn("discarding undecodable cache entry", "cache_key", key)
		}
	}

	html, err := s.upstream.FetchVehiclePage(ctx, regnr)
	if err != nil {
		return nil, false, err
	}

	v, err := scrape.VehiclePage(html, regnr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse vehicle page: %w", err)
	}
	if v.MileageHistory == nil {
		v.MileageHistory = []vehicle.MileageEntry{}
	}
	if v.Data == nil {
		v.Data = map[string]map[string]string{}
	}

	s.putCached(ctx, key, vehicle.LookupVehicle, v)
	return v, false, nil
}

// OwnerProfile looks up an owner profile by its profile ID. The profile's
// vehicle list is upgraded with the richer table fragment when the
// fragment can be fetched; fragment failures keep the link-derived list.
func (s *Service) OwnerProfile(ctx context.Context, profileID string, opts Options) (*vehicle.OwnerProfile, error) {
	start := time.Now()

	profile, hit, err := s.ownerProfile(ctx, profileID, opts)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, vehicle.LookupProfile, profileID, hit, start)
	return profile, nil
}

func (s *Service) ownerProfile(ctx context.Context, profileID string, opts Options) (*vehicle.OwnerProfile, bool, error) {
	key := cacheKey(vehicle.LookupProfile, profileID)

	if !opts.BypassCache {
		if payload, ok := s.getCached(ctx, key); ok {
			var profile vehicle.OwnerProfile
			if err := json.Unmarshal(payload, &profile); err == nil {
				return &profile, true, nil
			}
			s.logger.Warn("discarding undecodable cache entry", "cache_key", key)
		}
	}

	html, err := s.upstream.FetchOwnerProfilePage(ctx, profileID)
	if err != nil {
		return nil, false, err
	}

	profile, err := scrape.OwnerProfilePage(html, profileID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse owner profile page: %w", err)
	}

	if fragment, err := s.upstream.FetchOwnerVehiclesFragment(ctx, profileID); err == nil {
		// The fragment is authoritative when it loads, even when empty.
		if rows, err := scrape.VehicleTable(fragment); err == nil {
			profile.Vehicles = rows
		}
	} else {
		s.logger.Debug("vehicles fragment unavailable", "profile_id", profileID, "error", err)
	}

	if profile.Vehicles == nil {
		profile.Vehicles = []vehicle.VehicleSummary{}
	}
	if profile.AddressVehicles == nil {
		profile.AddressVehicles = []vehicle.VehicleRef{}
	}

	s.putCached(ctx, key, vehicle.LookupProfile, profile)
	return profile, false, nil
}

// OwnerByRegnr resolves a registration number to its current owner's
// profile via the vehicle page.
func (s *Service) OwnerByRegnr(ctx context.Context, regnr string, opts Options) (*vehicle.OwnerLookup, error) {
	start := time.Now()

	regnr, err := vehicle.NormalizeRegnr(regnr)
	if err != nil {
		return nil, err
	}

	v, vehicleHit, err := s.vehicle(ctx, regnr, opts)
	if err != nil {
		return nil, err
	}
	if v.Owner.CurrentOwner == nil || v.Owner.CurrentOwner.ProfileID == "" {
		return nil, ErrOwnerNotFound
	}

	profile, profileHit, err := s.ownerProfile(ctx, v.Owner.CurrentOwner.ProfileID, opts)
	if err != nil {
		return nil, err
	}

	history := v.Owner.History
	if history == nil {
		history = []vehicle.OwnerEntry{}
	}

	s.recordEvent(ctx, vehicle.LookupOwner, regnr, vehicleHit && profileHit, start)
	return &vehicle.OwnerLookup{
		Regnr:        regnr,
		VehicleTitle: v.PageTitle,
		OwnerProfile: *profile,
		OwnerHistory: history,
	}, nil
}

// AddressVehicles aggregates every vehicle registered at the address of
// the vehicle's current owner.
func (s *Service) AddressVehicles(ctx context.Context, regnr string, opts Options) (*vehicle.AddressVehicles, error) {
	start := time.Now()

	regnr, err := vehicle.NormalizeRegnr(regnr)
	if err != nil {
		return nil, err
	}

	v, vehicleHit, err := s.vehicle(ctx, regnr, opts)
	if err != nil {
		return nil, err
	}
	if v.Owner.CurrentOwner == nil || v.Owner.CurrentOwner.ProfileID == "" {
		return nil, ErrOwnerNotFound
	}

	profile, profileHit, err := s.ownerProfile(ctx, v.Owner.CurrentOwner.ProfileID, opts)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, vehicle.LookupAddress, regnr, vehicleHit && profileHit, start)
	return &vehicle.AddressVehicles{
		Regnr:           regnr,
		Owner:           profile.Name,
		Address:         profile.Address,
		PostalCode:      profile.PostalCode,
		PostalCity:      profile.PostalCity,
		OwnerVehicles:   profile.Vehicles,
		AddressVehicles: profile.AddressVehicles,
	}, nil
}

// Events lists the lookup audit log, newest first.
func (s *Service) Events(ctx context.Context, opts store.ListOptions) ([]vehicle.LookupEvent, int, error) {
	events, err := s.store.ListLookupEvents(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountLookupEvents(ctx)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// =============================================================================
// Cache Tiers
// =============================================================================

func cacheKey(kind vehicle.LookupKind, query string) string {
	return string(kind) + ":" + query
}

// getCached checks the memory tier, then the persistent tier. Expired
// entries count as misses in both tiers, even before the janitor prunes
// the persistent rows.
func (s *Service) getCached(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()

	if entry, ok := s.memory.Get(key); ok {
		if !entry.expired(now) {
			return entry.payload, true
		}
		s.memory.Remove(key)
	}

	page, err := s.store.GetCachedPage(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("cache read failed", "cache_key", key, "error", err)
		}
		return nil, false
	}
	if page.Expired(now) {
		return nil, false
	}

	s.memory.Add(key, memoryEntry{payload: page.Payload, expiresAt: page.ExpiresAt})
	return page.Payload, true
}

// putCached writes a parsed record to both cache tiers. Cache write
// failures are logged and swallowed; the lookup already succeeded.
func (s *Service) putCached(ctx context.Context, key string, kind vehicle.LookupKind, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", "cache_key", key, "error", err)
		return
	}

	now := time.Now()
	s.memory.Add(key, memoryEntry{payload: payload, expiresAt: now.Add(s.ttl)})

	page := &store.CachedPage{
		CacheKey:  key,
		Kind:      kind,
		Payload:   payload,
		FetchedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.PutCachedPage(ctx, page); err != nil {
		s.logger.Warn("cache write failed", "cache_key", key, "error", err)
	}
}

// =============================================================================
// Audit
// =============================================================================

func (s *Service) recordEvent(ctx context.Context, kind vehicle.LookupKind, query string, hit bool, start time.Time) {
	event := &vehicle.LookupEvent{
		ID:         uuid.New().String(),
		Kind:       kind,
		Query:      query,
		CacheHit:   hit,
		DurationMS: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateLookupEvent(ctx, event); err != nil {
		s.logger.Warn("failed to record lookup event", "kind", kind, "query", query, "error", err)
	}
}
