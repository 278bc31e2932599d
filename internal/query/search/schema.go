// Package search is the directory's filter, query-plan, pagination and facet engine.
//
// A request flows Normalize -> Build -> Paginator.Paginate, with
// FacetComputer.Compute running off the same plan. Nothing here touches the
// store directly: execution goes through PageSource and FacetSource.
package search

import (
	"fmt"

	"github.com/jewgo/backend/internal/domain/entities"
)

// FieldKind is the declared type of a filter parameter
type FieldKind int

const (
	// KindText is a free-text, case-insensitive substring match
	KindText FieldKind = iota
	// KindSet is one or more exact values, comma-delimited or repeated
	KindSet
	// KindEnum is a set restricted to Field.Enum
	KindEnum
	// KindBool is a boolean flag
	KindBool
	// KindMin is a numeric lower bound
	KindMin
	// KindMax is a numeric upper bound
	KindMax
	// KindRange is a "min-max" numeric range
	KindRange
)

// Field is a filterable request parameter bound to a column
type Field struct {
	Param  string
	Column string
	Kind   FieldKind
	Enum   []string
	Min    float64
	Max    float64
}

// Facet is a column whose available values are reported back to clients
type Facet struct {
	Name   string
	Column string
	// Bucket facets group numeric values by their floor
	Bucket bool
}

// Schema describes what one entity type can be filtered and faceted on
type Schema interface {
	Type() entities.EntityType
	Table() string
	Fields() []Field
	Field(param string) (Field, bool)
	Facets() []Facet
	NewListing() entities.Listing
}

type descriptor struct {
	entityType entities.EntityType
	table      string
	fields     []Field
	byParam    map[string]Field
	facets     []Facet
	newListing func() entities.Listing
}

func newDescriptor(t entities.EntityType, table string, fields []Field, facets []Facet, newListing func() entities.Listing) *descriptor {
	d := &descriptor{
		entityType: t,
		table:      table,
		fields:     append(commonFields(), fields...),
		facets:     append(commonFacets(), facets...),
		newListing: newListing,
	}
	d.byParam = make(map[string]Field, len(d.fields))
	for _, f := range d.fields {
		d.byParam[f.Param] = f
	}
	return d
}

func (d *descriptor) Type() entities.EntityType    { return d.entityType }
func (d *descriptor) Table() string                { return d.table }
func (d *descriptor) Fields() []Field              { return d.fields }
func (d *descriptor) Facets() []Facet              { return d.facets }
func (d *descriptor) NewListing() entities.Listing { return d.newListing() }

func (d *descriptor) Field(param string) (Field, bool) {
	f, ok := d.byParam[param]
	return f, ok
}

func commonFields() []Field {
	return []Field{
		{Param: "search", Column: "name", Kind: KindText},
		{Param: "city", Column: "city", Kind: KindSet},
		{Param: "state", Column: "state", Kind: KindSet},
		{Param: "zip_code", Column: "zip_code", Kind: KindSet},
		{Param: "status", Column: "status", Kind: KindEnum, Enum: []string{
			entities.StatusActive, entities.StatusInactive, entities.StatusPending,
		}},
		{Param: "ratingMin", Column: "rating", Kind: KindMin, Min: 0, Max: 5},
		{Param: "ratingMax", Column: "rating", Kind: KindMax, Min: 0, Max: 5},
	}
}

func commonFacets() []Facet {
	return []Facet{
		{Name: "city", Column: "city"},
		{Name: "state", Column: "state"},
		{Name: "rating", Column: "rating", Bucket: true},
	}
}

// RestaurantSchema describes restaurant listings
func RestaurantSchema() Schema {
	return newDescriptor(entities.EntityTypeRestaurant, "restaurants",
		[]Field{
			{Param: "kosher_category", Column: "kosher_category", Kind: KindSet},
			{Param: "agency", Column: "agency", Kind: KindSet},
			{Param: "priceRange", Column: "price_level", Kind: KindRange, Min: 1, Max: 4},
			{Param: "cholov_yisroel", Column: "cholov_yisroel", Kind: KindBool},
			{Param: "pas_yisroel", Column: "pas_yisroel", Kind: KindBool},
		},
		[]Facet{
			{Name: "kosher_category", Column: "kosher_category"},
			{Name: "agency", Column: "agency"},
			{Name: "price_level", Column: "price_level", Bucket: true},
		},
		func() entities.Listing { return &entities.Restaurant{} },
	)
}

// SynagogueSchema describes synagogue listings
func SynagogueSchema() Schema {
	return newDescriptor(entities.EntityTypeSynagogue, "synagogues",
		[]Field{
			{Param: "denomination", Column: "denomination", Kind: KindSet},
			{Param: "shul_type", Column: "shul_type", Kind: KindSet},
			{Param: "has_mechitza", Column: "has_mechitza", Kind: KindBool},
			{Param: "has_parking", Column: "has_parking", Kind: KindBool},
			{Param: "has_disabled_access", Column: "has_disabled_access", Kind: KindBool},
			{Param: "has_daily_minyan", Column: "has_daily_minyan", Kind: KindBool},
		},
		[]Facet{
			{Name: "denomination", Column: "denomination"},
			{Name: "shul_type", Column: "shul_type"},
		},
		func() entities.Listing { return &entities.Synagogue{} },
	)
}

// MikvahSchema describes mikvah listings
func MikvahSchema() Schema {
	return newDescriptor(entities.EntityTypeMikvah, "mikvahs",
		[]Field{
			{Param: "mikvah_type", Column: "mikvah_type", Kind: KindSet},
			{Param: "appointment_required", Column: "appointment_required", Kind: KindBool},
			{Param: "is_wheelchair_accessible", Column: "is_wheelchair_accessible", Kind: KindBool},
		},
		[]Facet{
			{Name: "mikvah_type", Column: "mikvah_type"},
		},
		func() entities.Listing { return &entities.Mikvah{} },
	)
}

// Registry resolves an entity type to its schema once per request
type Registry struct {
	schemas map[entities.EntityType]Schema
}

// NewRegistry returns a registry of the given schemas
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: make(map[entities.EntityType]Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Type()] = s
	}
	return r
}

// DefaultRegistry holds restaurants, synagogues and mikvahs
func DefaultRegistry() *Registry {
	return NewRegistry(RestaurantSchema(), SynagogueSchema(), MikvahSchema())
}

// Lookup returns the schema for a path segment such as "restaurants"
func (r *Registry) Lookup(entityType string) (Schema, error) {
	t, err := entities.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	s, ok := r.schemas[t]
	if !ok {
		return nil, fmt.Errorf("no schema registered for %q", entityType)
	}
	return s, nil
}
