package search_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jewgo/backend/internal/adapters/memory"
	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/query/search"
)

var testNow = time.Date(2026, 10, 14, 16, 0, 0, 0, time.UTC)

func testLimits() search.Limits {
	return search.Limits{DefaultLimit: 20, MaxLimit: 100, MaxRadiusMiles: 500}
}

func ptr[T any](v T) *T { return &v }

func restaurant(id int64, name, city string, rating *float64, lat, lng *float64) *entities.Restaurant {
	return &entities.Restaurant{
		Entity: entities.Entity{
			ID:        id,
			Name:      name,
			City:      city,
			State:     "FL",
			Latitude:  lat,
			Longitude: lng,
			Status:    entities.StatusActive,
			Rating:    rating,
			Timezone:  "America/New_York",
			CreatedAt: testNow.Add(-time.Duration(id) * time.Hour),
		},
		KosherCategory: "meat",
		Agency:         "ORB",
	}
}

func synagogue(id int64, name, denomination, shulType string) *entities.Synagogue {
	return &entities.Synagogue{
		Entity: entities.Entity{
			ID:        id,
			Name:      name,
			City:      "Miami",
			State:     "FL",
			Status:    entities.StatusActive,
			Timezone:  "America/New_York",
			CreatedAt: testNow,
		},
		Denomination: denomination,
		ShulType:     shulType,
	}
}

func plan(t *testing.T, schema search.Schema, params url.Values) (*search.QueryPlan, *search.SearchRequest) {
	t.Helper()
	req, err := search.NewNormalizer(testLimits()).Normalize(schema, params)
	require.NoError(t, err)
	return search.Build(req, testNow), req
}

func ids(listings []entities.Listing) []int64 {
	out := make([]int64, len(listings))
	for i, l := range listings {
		out[i] = l.Base().ID
	}
	return out
}

func newStore(listings ...entities.Listing) *memory.EntityStore {
	store := memory.NewEntityStore()
	for _, l := range listings {
		switch l.(type) {
		case *entities.Restaurant:
			store.Put(entities.EntityTypeRestaurant, l)
		case *entities.Synagogue:
			store.Put(entities.EntityTypeSynagogue, l)
		case *entities.Mikvah:
			store.Put(entities.EntityTypeMikvah, l)
		}
	}
	return store
}
