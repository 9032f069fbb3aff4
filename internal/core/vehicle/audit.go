package vehicle

import "time"

// =============================================================================
// Lookup Kinds
// =============================================================================

// LookupKind identifies which lookup flow served a request.
type LookupKind string

const (
	LookupVehicle LookupKind = "vehicle"
	LookupOwner   LookupKind = "owner"
	LookupProfile LookupKind = "profile"
	LookupAddress LookupKind = "address"
)

// IsValid checks if the lookup kind is known.
func (k LookupKind) IsValid() bool {
	switch k {
	case LookupVehicle, LookupOwner, LookupProfile, LookupAddress:
		return true
	default:
		return false
	}
}

// =============================================================================
// Lookup Event
// =============================================================================

// LookupEvent is one audit record of a served lookup.
type LookupEvent struct {
	ID         string     `json:"id"`
	Kind       LookupKind `json:"kind"`
	Query      string     `json:"query"`
	CacheHit   bool       `json:"cache_hit"`
	DurationMS int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}
