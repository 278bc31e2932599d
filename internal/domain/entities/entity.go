package entities

import (
	"fmt"
	"time"
)

// EntityType tags the kind of directory listing
type EntityType string

const (
	EntityTypeRestaurant EntityType = "restaurants"
	EntityTypeSynagogue  EntityType = "synagogues"
	EntityTypeMikvah     EntityType = "mikvahs"
)

// ParseEntityType maps a path segment to an entity type
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityTypeRestaurant, EntityTypeSynagogue, EntityTypeMikvah:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// NewListing returns an empty listing of the given type
func NewListing(t EntityType) (Listing, error) {
	switch t {
	case EntityTypeRestaurant:
		return &Restaurant{}, nil
	case EntityTypeSynagogue:
		return &Synagogue{}, nil
	case EntityTypeMikvah:
		return &Mikvah{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// Listing statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

// Entity holds the attributes every directory listing shares
type Entity struct {
	ID        int64         `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Address   string        `json:"address" db:"address"`
	City      string        `json:"city" db:"city"`
	State     string        `json:"state" db:"state"`
	ZipCode   string        `json:"zip_code" db:"zip_code"`
	Latitude  *float64      `json:"latitude" db:"latitude"`
	Longitude *float64      `json:"longitude" db:"longitude"`
	Status    string        `json:"status" db:"status"`
	Rating    *float64      `json:"rating" db:"rating"`
	Timezone  string        `json:"timezone" db:"timezone"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
	Hours     []HoursPeriod `json:"hours,omitempty" db:"-"`
	Distance  *float64      `json:"distance,omitempty" db:"-"`
}

// Listing is implemented by every entity type the search engine can query
type Listing interface {
	// Base returns the shared attributes
	Base() *Entity

	// Columns lists the stored columns in scan order
	Columns() []string

	// ScanTargets returns pointers matching Columns
	ScanTargets() []any

	// Field returns the value of a stored column; nil for SQL NULL
	Field(column string) (any, bool)
}

// Base returns the entity itself
func (e *Entity) Base() *Entity { return e }

var baseColumns = []string{
	"id", "name", "address", "city", "state", "zip_code",
	"latitude", "longitude", "status", "rating", "timezone",
	"created_at", "updated_at",
}

// Columns lists the shared columns
func (e *Entity) Columns() []string {
	return append([]string(nil), baseColumns...)
}

// ScanTargets returns pointers for the shared columns
func (e *Entity) ScanTargets() []any {
	return []any{
		&e.ID, &e.Name, &e.Address, &e.City, &e.State, &e.ZipCode,
		&e.Latitude, &e.Longitude, &e.Status, &e.Rating, &e.Timezone,
		&e.CreatedAt, &e.UpdatedAt,
	}
}

// Field returns a shared column value. Numbers are float64, ids int64.
func (e *Entity) Field(column string) (any, bool) {
	switch column {
	case "id":
		return e.ID, true
	case "name":
		return e.Name, true
	case "address":
		return e.Address, true
	case "city":
		return e.City, true
	case "state":
		return e.State, true
	case "zip_code":
		return e.ZipCode, true
	case "latitude":
		return floatOrNil(e.Latitude), true
	case "longitude":
		return floatOrNil(e.Longitude), true
	case "status":
		return e.Status, true
	case "rating":
		return floatOrNil(e.Rating), true
	case "timezone":
		return e.Timezone, true
	case "created_at":
		return e.CreatedAt, true
	case "updated_at":
		return e.UpdatedAt, true
	}
	return nil, false
}

// Location returns the coordinate pair, or false when either half is null
func (e *Entity) Location() (lat, lon float64, ok bool) {
	if e.Latitude == nil || e.Longitude == nil {
		return 0, 0, false
	}
	return *e.Latitude, *e.Longitude, true
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func intOrNil(i *int) any {
	if i == nil {
		return nil
	}
	return float64(*i)
}
