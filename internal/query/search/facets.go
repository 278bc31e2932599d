package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

// FacetValue is one distinct value of a facet and how many listings carry it
type FacetValue struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// FacetSet maps facet names to their values, most frequent first
type FacetSet map[string][]FacetValue

// FacetSource groups the listings matching plan by the facet column
type FacetSource interface {
	FacetValues(ctx context.Context, plan *QueryPlan, facet Facet) ([]FacetValue, error)
}

// FacetCache stores computed facet sets per entity type and filter hash
type FacetCache interface {
	Get(ctx context.Context, entityType entities.EntityType, filterHash uint64) (FacetSet, bool)
	Set(ctx context.Context, entityType entities.EntityType, filterHash uint64, set FacetSet)
	Invalidate(ctx context.Context, entityType entities.EntityType) error
}

// FacetComputer computes the available values of every facet of a schema.
// Each facet is computed over the plan without its own predicate, so selecting
// a value never hides the alternatives.
type FacetComputer struct {
	timeout     time.Duration
	concurrency int
	cache       FacetCache
}

// NewFacetComputer creates a facet computer. cache may be nil.
func NewFacetComputer(timeout time.Duration, concurrency int, cache FacetCache) *FacetComputer {
	if concurrency < 1 {
		concurrency = 4
	}
	return &FacetComputer{timeout: timeout, concurrency: concurrency, cache: cache}
}

// Compute returns the facet set for plan. Facets that fail or time out are
// logged and left out. The error is non-nil only when every facet failed, in
// which case the set is nil.
func (c *FacetComputer) Compute(ctx context.Context, src FacetSource, plan *QueryPlan) (FacetSet, error) {
	entityType := plan.Schema.Type()
	// open-hours results move with the clock
	cacheable := c.cache != nil && plan.Hours == nil
	if cacheable {
		if set, ok := c.cache.Get(ctx, entityType, plan.FilterHash()); ok {
			return set, nil
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	facets := plan.Schema.Facets()
	var (
		mu       sync.Mutex
		set      = make(FacetSet, len(facets))
		failures []error
	)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, f := range facets {
		g.Go(func() error {
			values, err := src.FacetValues(ctx, plan.Without(f.Column), f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				degraded := apperrors.NewDegradedFacetError(f.Name, err)
				failures = append(failures, degraded)
				observability.LoggerFromContext(ctx).Warn().
					Err(err).
					Str("entity_type", string(entityType)).
					Str("facet", f.Name).
					Msg("facet computation failed")
				return nil
			}
			if values == nil {
				values = []FacetValue{}
			}
			set[f.Name] = values
			return nil
		})
	}
	_ = g.Wait()

	if len(facets) > 0 && len(failures) == len(facets) {
		return nil, errors.Join(failures...)
	}
	if cacheable && len(failures) == 0 {
		c.cache.Set(ctx, entityType, plan.FilterHash(), set)
	}
	return set, nil
}
