package search

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/pkg/geo"
)

// Op is a predicate operator
type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Predicate restricts one column. All predicates of a plan are ANDed.
type Predicate struct {
	Param  string
	Column string
	Op     Op
	Values []any
}

// GeoFilter keeps listings within RadiusMiles of Center
type GeoFilter struct {
	Center      geo.Point
	RadiusMiles float64
}

// HoursFilter keeps listings open during Window, evaluated at At in each listing's timezone
type HoursFilter struct {
	Window entities.HoursWindow
	At     time.Time
}

// SortKey names a value listings are ordered by
type SortKey string

const (
	KeyDistance  SortKey = "distance"
	KeyRating    SortKey = "rating"
	KeyName      SortKey = "name"
	KeyCreatedAt SortKey = "created_at"
	KeyID        SortKey = "id"
)

// OrderKey is one term of the ordering. Nullable keys always sort NULLS LAST.
type OrderKey struct {
	Key      SortKey
	Desc     bool
	Nullable bool
}

// QueryPlan is an immutable, declarative description of a search. Executors
// must bind every value as a parameter.
type QueryPlan struct {
	Schema     Schema
	Predicates []Predicate
	Geo        *GeoFilter
	Origin     *geo.Point
	Hours      *HoursFilter
	Sort       SortMode
	Order      []OrderKey
	// Seek positions a keyset page strictly after this sort tuple
	Seek []any

	filterHash  uint64
	fingerprint uint64
}

var orderings = map[SortMode][]OrderKey{
	SortRating: {
		{Key: KeyRating, Desc: true, Nullable: true},
		{Key: KeyID},
	},
	SortDistance: {
		{Key: KeyDistance, Nullable: true},
		{Key: KeyRating, Desc: true, Nullable: true},
		{Key: KeyID},
	},
	SortName: {
		{Key: KeyName},
		{Key: KeyID},
	},
	SortNewest: {
		{Key: KeyCreatedAt, Desc: true},
		{Key: KeyID},
	},
}

// Build turns a normalized request into a plan. now is the instant hours
// filters are evaluated at.
func Build(req *SearchRequest, now time.Time) *QueryPlan {
	plan := &QueryPlan{
		Schema: req.Schema,
		Sort:   req.Sort,
		Order:  orderings[req.Sort],
	}

	for _, c := range req.Conditions {
		f := c.Field
		switch f.Kind {
		case KindText:
			plan.Predicates = append(plan.Predicates, Predicate{Param: f.Param, Column: f.Column, Op: OpContains, Values: c.Values})
		case KindSet, KindEnum:
			op := OpIn
			if len(c.Values) == 1 {
				op = OpEq
			}
			plan.Predicates = append(plan.Predicates, Predicate{Param: f.Param, Column: f.Column, Op: op, Values: c.Values})
		case KindBool:
			plan.Predicates = append(plan.Predicates, Predicate{Param: f.Param, Column: f.Column, Op: OpEq, Values: c.Values})
		case KindMin:
			plan.Predicates = append(plan.Predicates, Predicate{Param: f.Param, Column: f.Column, Op: OpGte, Values: c.Values})
		case KindMax:
			plan.Predicates = append(plan.Predicates, Predicate{Param: f.Param, Column: f.Column, Op: OpLte, Values: c.Values})
		case KindRange:
			plan.Predicates = append(plan.Predicates,
				Predicate{Param: f.Param, Column: f.Column, Op: OpGte, Values: c.Values[:1]},
				Predicate{Param: f.Param, Column: f.Column, Op: OpLte, Values: c.Values[1:]},
			)
		}
	}

	if req.Location != nil {
		origin := *req.Location
		plan.Origin = &origin
		if req.RadiusMiles > 0 {
			plan.Geo = &GeoFilter{Center: origin, RadiusMiles: req.RadiusMiles}
		}
	}
	if req.Hours != "" {
		plan.Hours = &HoursFilter{Window: req.Hours, At: now}
	}

	plan.filterHash, plan.fingerprint = plan.hashes()
	return plan
}

// Without returns a copy of the plan without predicates on column.
// The seek position is dropped.
func (p *QueryPlan) Without(column string) *QueryPlan {
	cp := *p
	cp.Seek = nil
	cp.Predicates = make([]Predicate, 0, len(p.Predicates))
	for _, pred := range p.Predicates {
		if pred.Column != column {
			cp.Predicates = append(cp.Predicates, pred)
		}
	}
	return &cp
}

// After returns a copy of the plan positioned after the given sort tuple
func (p *QueryPlan) After(values []any) *QueryPlan {
	cp := *p
	cp.Seek = append([]any(nil), values...)
	return &cp
}

// Fingerprint identifies the filters, origin and ordering of the plan.
// Cursors carry it so they cannot be replayed against another query.
func (p *QueryPlan) Fingerprint() uint64 {
	return p.fingerprint
}

// FilterHash identifies only the filters of the plan; ordering does not affect facets.
func (p *QueryPlan) FilterHash() uint64 {
	return p.filterHash
}

func (p *QueryPlan) hashes() (uint64, uint64) {
	var b strings.Builder
	fmt.Fprintf(&b, "type=%s;", p.Schema.Type())
	for _, pred := range p.Predicates {
		fmt.Fprintf(&b, "%s|%s|%s|%v;", pred.Param, pred.Column, pred.Op, pred.Values)
	}
	if p.Geo != nil {
		fmt.Fprintf(&b, "geo=%g,%g,%g;", p.Geo.Center.Latitude, p.Geo.Center.Longitude, p.Geo.RadiusMiles)
	}
	if p.Hours != nil {
		fmt.Fprintf(&b, "hours=%s;", p.Hours.Window)
	}
	filter := xxhash.Sum64String(b.String())

	if p.Origin != nil {
		fmt.Fprintf(&b, "origin=%g,%g;", p.Origin.Latitude, p.Origin.Longitude)
	}
	fmt.Fprintf(&b, "sort=%s", p.Sort)
	return filter, xxhash.Sum64String(b.String())
}

// SortValues extracts the sort tuple of a listing in plan order
func (p *QueryPlan) SortValues(l entities.Listing) []any {
	vals := make([]any, len(p.Order))
	for i, k := range p.Order {
		vals[i] = sortValue(l, k.Key)
	}
	return vals
}

func sortValue(l entities.Listing, key SortKey) any {
	base := l.Base()
	switch key {
	case KeyDistance:
		if base.Distance == nil {
			return nil
		}
		return *base.Distance
	case KeyRating:
		if base.Rating == nil {
			return nil
		}
		return *base.Rating
	case KeyName:
		return base.Name
	case KeyCreatedAt:
		return base.CreatedAt
	case KeyID:
		return base.ID
	}
	return nil
}

// Compare orders two sort tuples the way the plan does: negative when a comes first
func (p *QueryPlan) Compare(a, b []any) int {
	for i, k := range p.Order {
		if i >= len(a) || i >= len(b) {
			break
		}
		av, bv := a[i], b[i]
		switch {
		case av == nil && bv == nil:
			continue
		case av == nil:
			return 1
		case bv == nil:
			return -1
		}
		c := compareValues(av, bv)
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		bv, _ := b.(float64)
		return cmp.Compare(av, bv)
	case int64:
		bv, _ := b.(int64)
		return cmp.Compare(av, bv)
	case string:
		bv, _ := b.(string)
		return cmp.Compare(av, bv)
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	}
	return 0
}
