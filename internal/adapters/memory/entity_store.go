// Package memory is an in-process listing store. It evaluates query plans the
// same way the PostgreSQL adapter does and backs local development and tests.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/domain/repositories"
	"github.com/jewgo/backend/internal/query/search"
	apperrors "github.com/jewgo/backend/pkg/errors"
	"github.com/jewgo/backend/pkg/geo"
)

// Seed is the on-disk layout of a seed file
type Seed struct {
	Restaurants []*entities.Restaurant `json:"restaurants"`
	Synagogues  []*entities.Synagogue  `json:"synagogues"`
	Mikvahs     []*entities.Mikvah     `json:"mikvahs"`
}

// EntityStore holds listings in memory
type EntityStore struct {
	mu       sync.RWMutex
	listings map[entities.EntityType][]entities.Listing
}

var _ repositories.EntitySearchRepository = (*EntityStore)(nil)

// NewEntityStore creates an empty store
func NewEntityStore() *EntityStore {
	return &EntityStore{listings: make(map[entities.EntityType][]entities.Listing)}
}

// ReadSeed parses a JSON seed file
func ReadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// ByType groups the seeded listings by entity type
func (s *Seed) ByType() map[entities.EntityType][]entities.Listing {
	out := make(map[entities.EntityType][]entities.Listing, 3)
	for _, r := range s.Restaurants {
		out[entities.EntityTypeRestaurant] = append(out[entities.EntityTypeRestaurant], r)
	}
	for _, sy := range s.Synagogues {
		out[entities.EntityTypeSynagogue] = append(out[entities.EntityTypeSynagogue], sy)
	}
	for _, m := range s.Mikvahs {
		out[entities.EntityTypeMikvah] = append(out[entities.EntityTypeMikvah], m)
	}
	return out
}

// LoadSeedFile reads a JSON seed file into a new store
func LoadSeedFile(path string) (*EntityStore, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return nil, err
	}
	store := NewEntityStore()
	for t, listings := range seed.ByType() {
		for _, l := range listings {
			store.Put(t, l)
		}
	}
	return store, nil
}

// Put adds or replaces a listing
func (s *EntityStore) Put(entityType entities.EntityType, l entities.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.listings[entityType]
	for i, existing := range rows {
		if existing.Base().ID == l.Base().ID {
			rows[i] = l
			return
		}
	}
	s.listings[entityType] = append(rows, l)
}

// Fetch returns the matching listings in plan order, after plan.Seek when set
func (s *EntityStore) Fetch(ctx context.Context, plan *search.QueryPlan, limit, offset int) ([]entities.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewUpstreamTimeoutError("listing query timed out", err)
	}
	rows := s.match(plan)

	keyed := make([]keyedListing, len(rows))
	for i, l := range rows {
		keyed[i] = keyedListing{listing: l, key: plan.SortValues(l)}
	}
	slices.SortFunc(keyed, func(a, b keyedListing) int {
		return plan.Compare(a.key, b.key)
	})

	out := make([]entities.Listing, 0, limit)
	skipped := 0
	for _, k := range keyed {
		if plan.Seek != nil && plan.Compare(k.key, plan.Seek) <= 0 {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, k.listing)
	}
	return out, nil
}

// Count returns the number of matching listings
func (s *EntityStore) Count(ctx context.Context, plan *search.QueryPlan) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewUpstreamTimeoutError("listing count timed out", err)
	}
	return len(s.match(plan)), nil
}

// FacetValues groups the matching listings by the facet column. Null and empty
// values are not reported.
func (s *EntityStore) FacetValues(ctx context.Context, plan *search.QueryPlan, facet search.Facet) ([]search.FacetValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewUpstreamTimeoutError("facet query timed out", err)
	}
	counts := map[any]int{}
	for _, l := range s.match(plan) {
		v, ok := l.Field(facet.Column)
		if !ok || v == nil || v == "" {
			continue
		}
		if facet.Bucket {
			f, isNum := v.(float64)
			if !isNum {
				continue
			}
			v = math.Floor(f)
		}
		counts[v]++
	}

	values := make([]search.FacetValue, 0, len(counts))
	for v, n := range counts {
		values = append(values, search.FacetValue{Value: v, Count: n})
	}
	slices.SortFunc(values, func(a, b search.FacetValue) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(fmt.Sprint(a.Value), fmt.Sprint(b.Value))
	})
	return values, nil
}

// GetByID returns one listing
func (s *EntityStore) GetByID(ctx context.Context, entityType entities.EntityType, id int64) (entities.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewUpstreamTimeoutError("listing lookup timed out", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listings[entityType] {
		if l.Base().ID == id {
			return clone(l), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s %d not found", entityType, id))
}

// Ping always succeeds
func (s *EntityStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type keyedListing struct {
	listing entities.Listing
	key     []any
}

// match returns copies of the listings satisfying every plan filter, with
// Distance set when the plan has an origin
func (s *EntityStore) match(plan *search.QueryPlan) []entities.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.Listing
	for _, l := range s.listings[plan.Schema.Type()] {
		if !matchesPredicates(l, plan.Predicates) {
			continue
		}
		base := l.Base()
		point := geo.NewPoint(base.Latitude, base.Longitude)
		if plan.Geo != nil && !geo.WithinRadius(plan.Geo.Center, plan.Geo.RadiusMiles, point) {
			continue
		}
		if plan.Hours != nil && !plan.Hours.Window.Matches(base.Hours, base.Timezone, plan.Hours.At) {
			continue
		}

		row := clone(l)
		if plan.Origin != nil && point != nil {
			d := geo.Distance(*plan.Origin, point)
			row.Base().Distance = &d
		}
		out = append(out, row)
	}
	return out
}

func matchesPredicates(l entities.Listing, preds []search.Predicate) bool {
	for _, p := range preds {
		v, ok := l.Field(p.Column)
		if !ok || v == nil {
			return false
		}
		switch p.Op {
		case search.OpContains:
			s, _ := v.(string)
			needle, _ := p.Values[0].(string)
			if !strings.Contains(strings.ToLower(s), strings.ToLower(needle)) {
				return false
			}
		case search.OpEq, search.OpIn:
			if !slices.ContainsFunc(p.Values, func(want any) bool { return equal(v, want) }) {
				return false
			}
		case search.OpGte, search.OpLte:
			f, isNum := v.(float64)
			bound, _ := p.Values[0].(float64)
			if !isNum {
				return false
			}
			if p.Op == search.OpGte && f < bound || p.Op == search.OpLte && f > bound {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(have, want any) bool {
	switch h := have.(type) {
	case string:
		w, ok := want.(string)
		return ok && h == w
	case bool:
		w, ok := want.(bool)
		return ok && h == w
	case float64:
		w, ok := want.(float64)
		return ok && h == w
	}
	return false
}

func clone(l entities.Listing) entities.Listing {
	switch v := l.(type) {
	case *entities.Restaurant:
		c := *v
		return &c
	case *entities.Synagogue:
		c := *v
		return &c
	case *entities.Mikvah:
		c := *v
		return &c
	}
	return l
}
