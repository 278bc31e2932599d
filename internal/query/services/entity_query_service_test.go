package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jewgo/backend/internal/adapters/memory"
	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/query/search"
	"github.com/jewgo/backend/pkg/config"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

var wednesdayNoon = time.Date(2026, 10, 14, 16, 0, 0, 0, time.UTC)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Fetch(ctx context.Context, plan *search.QueryPlan, limit, offset int) ([]entities.Listing, error) {
	args := m.Called(ctx, plan, limit, offset)
	listings, _ := args.Get(0).([]entities.Listing)
	return listings, args.Error(1)
}

func (m *mockRepository) Count(ctx context.Context, plan *search.QueryPlan) (int, error) {
	args := m.Called(ctx, plan)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) FacetValues(ctx context.Context, plan *search.QueryPlan, facet search.Facet) ([]search.FacetValue, error) {
	args := m.Called(ctx, plan, facet)
	values, _ := args.Get(0).([]search.FacetValue)
	return values, args.Error(1)
}

func (m *mockRepository) GetByID(ctx context.Context, entityType entities.EntityType, id int64) (entities.Listing, error) {
	args := m.Called(ctx, entityType, id)
	listing, _ := args.Get(0).(entities.Listing)
	return listing, args.Error(1)
}

func (m *mockRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultLimit:   20,
		MaxLimit:       100,
		MaxRadiusMiles: 500,
		QueryTimeout:   time.Second,
		FacetTimeout:   time.Second,
		CursorSecret:   "test-secret",
	}
}

func newService(repo *mockRepository, cache search.FacetCache) *EntityQueryService {
	return NewEntityQueryService(repo, searchConfig(), cache, WithClock(func() time.Time { return wednesdayNoon }))
}

func synagogue(id int64, name, denomination string) *entities.Synagogue {
	return &entities.Synagogue{
		Entity: entities.Entity{
			ID:        id,
			Name:      name,
			City:      "Miami",
			Status:    entities.StatusActive,
			Timezone:  "America/New_York",
			CreatedAt: wednesdayNoon,
		},
		Denomination: denomination,
		ShulType:     "ashkenaz",
	}
}

func TestEntityQueryService_Search_WithMemoryStore(t *testing.T) {
	store := memory.NewEntityStore()
	store.Put(entities.EntityTypeSynagogue, synagogue(1, "Young Israel", "orthodox"))
	store.Put(entities.EntityTypeSynagogue, synagogue(2, "Temple Beth", "conservative"))
	store.Put(entities.EntityTypeSynagogue, synagogue(3, "Chabad House", "orthodox"))

	service := NewEntityQueryService(store, searchConfig(), nil)
	result, err := service.Search(context.Background(), "synagogues", url.Values{
		"denomination":           {"orthodox"},
		"sort":                   {"name"},
		"include_filter_options": {"true"},
	})
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "Chabad House", result.Items[0].Base().Name)
	assert.Equal(t, "Young Israel", result.Items[1].Base().Name)
	assert.False(t, result.Pagination.HasMore)
	assert.True(t, result.FacetsRequested)
	assert.Equal(t, []search.FacetValue{
		{Value: "orthodox", Count: 2},
		{Value: "conservative", Count: 1},
	}, result.Facets["denomination"])
}

func TestEntityQueryService_Search_FacetFailureKeepsPage(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Fetch", mock.Anything, mock.Anything, 21, 0).
		Return([]entities.Listing{synagogue(1, "Young Israel", "orthodox")}, nil)
	repo.On("FacetValues", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("statement timeout"))

	result, err := newService(repo, nil).Search(context.Background(), "synagogues", url.Values{"include_filter_options": {"true"}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.True(t, result.FacetsRequested)
	assert.Nil(t, result.Facets)
	repo.AssertExpectations(t)
}

func TestEntityQueryService_Search_PageFailureFailsRequest(t *testing.T) {
	timeout := apperrors.NewUpstreamTimeoutError("search query timed out", context.DeadlineExceeded)
	repo := &mockRepository{}
	repo.On("Fetch", mock.Anything, mock.Anything, 21, 0).Return(nil, timeout)
	repo.On("FacetValues", mock.Anything, mock.Anything, mock.Anything).
		Return([]search.FacetValue{{Value: "Miami", Count: 1}}, nil).Maybe()

	result, err := newService(repo, nil).Search(context.Background(), "mikvahs", url.Values{"include_filter_options": {"true"}})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamTimeout))
}

func TestEntityQueryService_Search_SkipsFacetsUnlessRequested(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Fetch", mock.Anything, mock.Anything, 21, 0).Return([]entities.Listing{}, nil)

	result, err := newService(repo, nil).Search(context.Background(), "restaurants", url.Values{})
	require.NoError(t, err)
	assert.False(t, result.FacetsRequested)
	assert.Empty(t, result.Items)
	repo.AssertNotCalled(t, "FacetValues", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntityQueryService_Search_Errors(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		params     url.Values
		want       apperrors.ErrorType
	}{
		{"unknown entity type", "bakeries", url.Values{}, apperrors.ErrorTypeNotFound},
		{"unknown filter", "restaurants", url.Values{"denomination": {"orthodox"}}, apperrors.ErrorTypeValidation},
		{"bad cursor", "restaurants", url.Values{"cursor": {"bogus"}}, apperrors.ErrorTypeInvalidCursor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			_, err := newService(repo, nil).Search(context.Background(), tt.entityType, tt.params)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.want), err.Error())
			repo.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEntityQueryService_FilterOptions(t *testing.T) {
	repo := &mockRepository{}
	repo.On("FacetValues", mock.Anything, mock.Anything, mock.MatchedBy(func(f search.Facet) bool { return f.Name == "city" })).
		Return([]search.FacetValue{{Value: "Miami", Count: 3}}, nil)
	repo.On("FacetValues", mock.Anything, mock.Anything, mock.Anything).
		Return([]search.FacetValue{}, nil)

	set, err := newService(repo, nil).FilterOptions(context.Background(), "mikvahs", url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []search.FacetValue{{Value: "Miami", Count: 3}}, set["city"])
	repo.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEntityQueryService_FilterOptions_AllFacetsFail(t *testing.T) {
	repo := &mockRepository{}
	repo.On("FacetValues", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := newService(repo, nil).FilterOptions(context.Background(), "mikvahs", url.Values{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamTimeout))
}

func TestEntityQueryService_GetByID(t *testing.T) {
	repo := &mockRepository{}
	repo.On("GetByID", mock.Anything, entities.EntityTypeSynagogue, int64(7)).
		Return(synagogue(7, "Young Israel", "orthodox"), nil)
	repo.On("GetByID", mock.Anything, entities.EntityTypeSynagogue, int64(8)).
		Return(nil, apperrors.NewNotFoundError("synagogue 8 not found"))

	service := newService(repo, nil)
	listing, err := service.GetByID(context.Background(), "synagogues", 7)
	require.NoError(t, err)
	assert.Equal(t, "Young Israel", listing.Base().Name)

	_, err = service.GetByID(context.Background(), "synagogues", 8)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = service.GetByID(context.Background(), "bakeries", 1)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	repo.AssertExpectations(t)
}

type stubCache struct {
	mu          sync.Mutex
	invalidated []entities.EntityType
}

func (c *stubCache) Get(context.Context, entities.EntityType, uint64) (search.FacetSet, bool) {
	return nil, false
}

func (c *stubCache) Set(context.Context, entities.EntityType, uint64, search.FacetSet) {}

func (c *stubCache) Invalidate(_ context.Context, t entities.EntityType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, t)
	return nil
}

func (c *stubCache) calls() []entities.EntityType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entities.EntityType(nil), c.invalidated...)
}

func TestEntityQueryService_InvalidateFacets(t *testing.T) {
	cache := &stubCache{}
	service := newService(&mockRepository{}, cache)
	require.NoError(t, service.InvalidateFacets(context.Background(), entities.EntityTypeMikvah))
	assert.Equal(t, []entities.EntityType{entities.EntityTypeMikvah}, cache.calls())

	// no cache configured
	assert.NoError(t, newService(&mockRepository{}, nil).InvalidateFacets(context.Background(), entities.EntityTypeMikvah))
}
