package store

import (
	"context"
	"time"

	"github.com/plateworks/fordon/internal/core/vehicle"
)

// =============================================================================
// Entities
// =============================================================================

// CachedPage holds one parsed registry record, serialized to JSON and
// keyed by "<kind>:<query>" (e.g. "vehicle:XBD134").
type CachedPage struct {
	CacheKey  string
	Kind      vehicle.LookupKind
	Payload   []byte
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at the given time.
func (p CachedPage) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the lookup cache and audit log.
type Store interface {
	// Cached page operations
	GetCachedPage(ctx context.Context, cacheKey string) (*CachedPage, error)
	PutCachedPage(ctx context.Context, page *CachedPage) error
	DeleteExpiredPages(ctx context.Context, now time.Time) (int64, error)

	// Lookup audit operations
	CreateLookupEvent(ctx context.Context, event *vehicle.LookupEvent) error
	ListLookupEvents(ctx context.Context, opts ListOptions) ([]vehicle.LookupEvent, error)
	CountLookupEvents(ctx context.Context) (int, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
