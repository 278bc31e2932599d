package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/domain/repositories"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	"github.com/jewgo/backend/internal/query/search"
	"github.com/jewgo/backend/pkg/config"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

// SearchResult is one page of listings with optional facets
type SearchResult struct {
	Items      []entities.Listing
	Pagination search.Pagination
	// Facets is nil when not requested or when every facet failed
	Facets          search.FacetSet
	FacetsRequested bool
}

// EntityQueryService handles read-only directory searches
type EntityQueryService struct {
	repo       repositories.EntitySearchRepository
	registry   *search.Registry
	normalizer *search.Normalizer
	paginator  *search.Paginator
	facets     *search.FacetComputer
	cache      search.FacetCache
	metrics    *observability.Metrics
	now        func() time.Time
}

// Option customises an EntityQueryService
type Option func(*EntityQueryService)

// WithClock overrides the instant hours filters are evaluated at
func WithClock(now func() time.Time) Option {
	return func(s *EntityQueryService) { s.now = now }
}

// WithRegistry overrides the entity schemas
func WithRegistry(r *search.Registry) Option {
	return func(s *EntityQueryService) { s.registry = r }
}

// WithMetrics records facet degradation
func WithMetrics(m *observability.Metrics) Option {
	return func(s *EntityQueryService) { s.metrics = m }
}

// NewEntityQueryService creates a new entity query service. cache may be nil.
func NewEntityQueryService(
	repo repositories.EntitySearchRepository,
	cfg config.SearchConfig,
	cache search.FacetCache,
	opts ...Option,
) *EntityQueryService {
	s := &EntityQueryService{
		repo:     repo,
		registry: search.DefaultRegistry(),
		normalizer: search.NewNormalizer(search.Limits{
			DefaultLimit:   cfg.DefaultLimit,
			MaxLimit:       cfg.MaxLimit,
			MaxRadiusMiles: cfg.MaxRadiusMiles,
		}),
		paginator: search.NewPaginator(search.NewCursorCodec(cfg.CursorSecret), cfg.DefaultLimit),
		facets:    search.NewFacetComputer(cfg.FacetTimeout, 4, cache),
		cache:     cache,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs a filtered, sorted, paginated search. Facets are computed
// alongside the page when requested; only the page can fail the call.
func (s *EntityQueryService) Search(ctx context.Context, entityType string, params url.Values) (*SearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "EntityQueryService.Search")
	defer span.End()

	schema, err := s.schema(entityType)
	if err != nil {
		return nil, err
	}
	req, err := s.normalizer.Normalize(schema, params)
	if err != nil {
		return nil, err
	}
	plan := search.Build(req, s.now())
	observability.SetSpanAttributes(span,
		attribute.String("entity_type", entityType),
		attribute.String("sort", string(plan.Sort)),
		attribute.Int("predicates", len(plan.Predicates)),
		attribute.Bool("keyset", !req.Page.Offset()),
	)

	result := &SearchResult{FacetsRequested: req.IncludeFacets}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := s.paginator.Paginate(gctx, s.repo, plan, req.Page)
		if err != nil {
			return err
		}
		result.Items = page.Items
		result.Pagination = page.Pagination
		return nil
	})
	if req.IncludeFacets {
		g.Go(func() error {
			result.Facets = s.computeFacets(gctx, plan)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// FilterOptions returns the facets for the current filters without a page
func (s *EntityQueryService) FilterOptions(ctx context.Context, entityType string, params url.Values) (search.FacetSet, error) {
	ctx, span := observability.StartSpan(ctx, "EntityQueryService.FilterOptions")
	defer span.End()

	schema, err := s.schema(entityType)
	if err != nil {
		return nil, err
	}
	req, err := s.normalizer.Normalize(schema, params)
	if err != nil {
		return nil, err
	}
	set, err := s.facets.Compute(ctx, s.repo, search.Build(req, s.now()))
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordFacetDegradation(ctx, s.metrics, entityType)
		return nil, apperrors.NewUpstreamTimeoutError("filter options are temporarily unavailable", err)
	}
	return set, nil
}

// GetByID retrieves a single listing
func (s *EntityQueryService) GetByID(ctx context.Context, entityType string, id int64) (entities.Listing, error) {
	ctx, span := observability.StartSpan(ctx, "EntityQueryService.GetByID")
	defer span.End()

	schema, err := s.schema(entityType)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, schema.Type(), id)
}

// InvalidateFacets drops cached facets of an entity type
func (s *EntityQueryService) InvalidateFacets(ctx context.Context, entityType entities.EntityType) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, entityType)
}

// Ping reports whether the store answers
func (s *EntityQueryService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *EntityQueryService) computeFacets(ctx context.Context, plan *search.QueryPlan) search.FacetSet {
	set, err := s.facets.Compute(ctx, s.repo, plan)
	if err != nil {
		entityType := string(plan.Schema.Type())
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("entity_type", entityType).
			Msg("serving results without filter options")
		observability.RecordFacetDegradation(ctx, s.metrics, entityType)
		return nil
	}
	return set
}

func (s *EntityQueryService) schema(entityType string) (search.Schema, error) {
	schema, err := s.registry.Lookup(entityType)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("unknown entity type %q", entityType))
	}
	return schema, nil
}
