// Package vehicle contains the core domain types for Swedish vehicle
// registry data. All functions here are pure with no I/O.
package vehicle

// =============================================================================
// Registration Status
// =============================================================================

// RegistrationStatus is the registry state of a vehicle.
type RegistrationStatus string

const (
	// StatusInTraffic means the vehicle is registered and in traffic ("I Trafik").
	StatusInTraffic RegistrationStatus = "I Trafik"
	// StatusOffRoad means the vehicle is temporarily off the road ("Avställd").
	StatusOffRoad RegistrationStatus = "Avställd"
	// StatusDeregistered means the vehicle is deregistered ("Avregistrerad").
	StatusDeregistered RegistrationStatus = "Avregistrerad"
	// StatusUnknown is used when the registry page does not expose a status.
	StatusUnknown RegistrationStatus = ""
)

// StatusFromRowClass maps a registry table row class to a registration status.
func StatusFromRowClass(class string) RegistrationStatus {
	switch class {
	case "itrafik":
		return StatusInTraffic
	case "avstalld":
		return StatusOffRoad
	case "avregistrerad":
		return StatusDeregistered
	default:
		return StatusUnknown
	}
}

// =============================================================================
// Owner Class
// =============================================================================

// OwnerClass categorises the holder in an ownership record.
type OwnerClass string

const (
	OwnerPerson  OwnerClass = "person"
	OwnerCompany OwnerClass = "company"
	OwnerRental  OwnerClass = "rental"
	OwnerDealer  OwnerClass = "dealer"
	OwnerUnknown OwnerClass = "unknown"
)

// OwnerClassFromString parses a registry owner class, defaulting to unknown.
func OwnerClassFromString(s string) OwnerClass {
	switch OwnerClass(s) {
	case OwnerPerson, OwnerCompany, OwnerRental, OwnerDealer:
		return OwnerClass(s)
	default:
		return OwnerUnknown
	}
}

// =============================================================================
// Vehicle
// =============================================================================

// Vehicle is the full registry record for a single vehicle, as extracted
// from its registry page.
type Vehicle struct {
	Regnr          string                       `json:"regnr"`
	PageTitle      string                       `json:"page_title"`
	Data           map[string]map[string]string `json:"data"`
	Owner          Owner                        `json:"owner"`
	MileageHistory []MileageEntry               `json:"mileage_history"`
}

// Owner is the ownership block of a vehicle page: the current owner plus
// the recorded ownership history.
type Owner struct {
	Summary      string       `json:"summary,omitempty"`
	CurrentOwner *OwnerRef    `json:"current_owner,omitempty"`
	History      []OwnerEntry `json:"history,omitempty"`
}

// OwnerRef is a link to an owner profile.
type OwnerRef struct {
	Name       string `json:"name"`
	ProfileID  string `json:"profile_id"`
	ProfileURL string `json:"profile_url"`
	City       string `json:"city,omitempty"`
}

// OwnerEntry is a single row in the ownership history.
type OwnerEntry struct {
	Type       string     `json:"type"`
	OwnerClass OwnerClass `json:"owner_class"`
	Date       string     `json:"date"`
	Name       string     `json:"name,omitempty"`
	ProfileID  string     `json:"profile_id,omitempty"`
	ProfileURL string     `json:"profile_url,omitempty"`
	Details    string     `json:"details,omitempty"`
}

// MileageEntry is one odometer reading from the inspection history.
// Swedish registries record mileage in "mil" (1 mil = 10 km).
type MileageEntry struct {
	Date       string `json:"date"`
	MileageMil int    `json:"mileage_mil"`
	MileageKm  int    `json:"mileage_km"`
	Kind       string `json:"type"`
}

// =============================================================================
// Owner Profile
// =============================================================================

// OwnerProfile is the full record of an owner profile page.
type OwnerProfile struct {
	ProfileID       string           `json:"profile_id"`
	Name            string           `json:"name,omitempty"`
	PersonType      string           `json:"person_type,omitempty"`
	Age             int              `json:"age,omitempty"`
	City            string           `json:"city,omitempty"`
	Personnummer    string           `json:"personnummer,omitempty"`
	Address         string           `json:"address,omitempty"`
	PostalCode      string           `json:"postal_code,omitempty"`
	PostalCity      string           `json:"postal_city,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	Vehicles        []VehicleSummary `json:"vehicles"`
	AddressVehicles []VehicleRef     `json:"address_vehicles"`
}

// VehicleRef is a link to a vehicle page, as found in profile listings.
type VehicleRef struct {
	Regnr       string `json:"regnr"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// VehicleSummary is one row of an owner's vehicle table.
type VehicleSummary struct {
	Regnr         string             `json:"regnr"`
	Model         string             `json:"model"`
	Color         string             `json:"color,omitempty"`
	Year          int                `json:"year,omitempty"`
	DateAcquired  string             `json:"date_acquired,omitempty"`
	OwnershipTime string             `json:"ownership_time,omitempty"`
	Status        RegistrationStatus `json:"status,omitempty"`
}

// =============================================================================
// Composed Lookups
// =============================================================================

// OwnerLookup ties a vehicle to its current owner's profile.
type OwnerLookup struct {
	Regnr        string       `json:"regnr"`
	VehicleTitle string       `json:"vehicle_title"`
	OwnerProfile OwnerProfile `json:"owner_profile"`
	OwnerHistory []OwnerEntry `json:"owner_history"`
}

// AddressVehicles aggregates every vehicle registered at the owner's address.
type AddressVehicles struct {
	Regnr           string           `json:"regnr"`
	Owner           string           `json:"owner"`
	Address         string           `json:"address"`
	PostalCode      string           `json:"postal_code"`
	PostalCity      string           `json:"postal_city"`
	OwnerVehicles   []VehicleSummary `json:"owner_vehicles"`
	AddressVehicles []VehicleRef     `json:"address_vehicles"`
}
