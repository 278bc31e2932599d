package database

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/infrastructure/clients/postgres"
	"github.com/jewgo/backend/internal/query/search"
	apperrors "github.com/jewgo/backend/pkg/errors"
	"github.com/jewgo/backend/pkg/geo"
)

var restaurantColumns = []string{
	"id", "name", "address", "city", "state", "zip_code",
	"latitude", "longitude", "status", "rating", "timezone",
	"created_at", "updated_at",
	"kosher_category", "agency", "price_level", "cholov_yisroel", "pas_yisroel",
	"distance", "hours",
}

func newTestAdapter(t *testing.T) (*EntitySearchAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEntitySearchAdapter(postgres.NewClientFromDB(db), time.Second, nil), mock
}

func buildPlan(t *testing.T, schema search.Schema, params url.Values) *search.QueryPlan {
	t.Helper()
	n := search.NewNormalizer(search.Limits{DefaultLimit: 20, MaxLimit: 100, MaxRadiusMiles: 500})
	req, err := n.Normalize(schema, params)
	require.NoError(t, err)
	return search.Build(req, time.Date(2026, 10, 14, 16, 0, 0, 0, time.UTC))
}

func TestSelectSQL_BindsEveryValue(t *testing.T) {
	a, _ := newTestAdapter(t)
	plan := buildPlan(t, search.RestaurantSchema(), url.Values{
		"city":           {"Miami"},
		"search":         {"50%_off'; DROP TABLE restaurants"},
		"cholov_yisroel": {"true"},
		"priceRange":     {"2-3"},
		"lat":            {"25.7617"},
		"lng":            {"-80.1918"},
		"radius":         {"10"},
	})

	query, args, err := a.selectSQL(plan, 21, 0)
	require.NoError(t, err)

	assert.NotContains(t, query, "Miami")
	assert.NotContains(t, query, "DROP TABLE")
	assert.Contains(t, query, `FROM "restaurants" AS "e"`)
	assert.Contains(t, query, `"e"."city" = $`)
	assert.Contains(t, query, `"e"."name" ILIKE $`)
	assert.Contains(t, query, `"e"."price_level" >= $`)
	assert.Contains(t, query, `"e"."price_level" <= $`)
	assert.Contains(t, query, `"e"."cholov_yisroel" IS TRUE`)
	assert.Contains(t, query, "ST_DWithin(e.location")
	assert.Contains(t, query, `"e"."rating" DESC NULLS LAST`)

	assert.Contains(t, args, "Miami")
	assert.Contains(t, args, `%50\%\_off'; DROP TABLE restaurants%`)
	assert.Contains(t, args, entities.StatusActive)
	assert.Contains(t, args, geo.MilesToMeters(10))
}

func TestSelectSQL_DistanceOrdering(t *testing.T) {
	a, _ := newTestAdapter(t)
	plan := buildPlan(t, search.SynagogueSchema(), url.Values{
		"lat":  {"25.7617"},
		"lng":  {"-80.1918"},
		"sort": {"distance"},
	})

	query, _, err := a.selectSQL(plan, 11, 0)
	require.NoError(t, err)
	assert.Contains(t, query, "ST_Distance(e.location")
	assert.Contains(t, query, `AS "distance"`)
	assert.NotContains(t, query, "ST_DWithin")
	assert.Contains(t, query, "ASC NULLS LAST")
}

func TestSelectSQL_SeekAfterCursor(t *testing.T) {
	a, _ := newTestAdapter(t)
	plan := buildPlan(t, search.RestaurantSchema(), url.Values{}).After([]any{4.5, int64(2)})

	query, args, err := a.selectSQL(plan, 11, 0)
	require.NoError(t, err)
	assert.Contains(t, query, `"e"."rating" < $`)
	assert.Contains(t, query, `"e"."rating" IS NULL`)
	assert.Contains(t, query, `"e"."rating" = $`)
	assert.Contains(t, query, `"e"."id" > $`)
	assert.NotContains(t, query, "OFFSET")
	assert.Contains(t, args, 4.5)
	assert.Contains(t, args, int64(2))
}

func TestSelectSQL_SeekAfterNullRating(t *testing.T) {
	a, _ := newTestAdapter(t)
	plan := buildPlan(t, search.RestaurantSchema(), url.Values{}).After([]any{nil, int64(7)})

	query, _, err := a.selectSQL(plan, 11, 0)
	require.NoError(t, err)
	assert.Contains(t, query, `"e"."rating" IS NULL`)
	assert.Contains(t, query, `"e"."id" > $`)
	assert.NotContains(t, query, `"e"."rating" < $`)
}

func TestSelectSQL_HoursFilter(t *testing.T) {
	a, _ := newTestAdapter(t)
	plan := buildPlan(t, search.RestaurantSchema(), url.Values{"hoursFilter": {"evening"}})

	query, args, err := a.selectSQL(plan, 21, 40)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM entity_hours h CROSS JOIN LATERAL")
	assert.Contains(t, query, "OFFSET $")
	assert.Contains(t, args, "2026-10-14T16:00:00Z")
	assert.Contains(t, args, "21:00")
	assert.Contains(t, args, "17:00")
}

func TestEntitySearchAdapter_Fetch(t *testing.T) {
	a, mock := newTestAdapter(t)
	plan := buildPlan(t, search.RestaurantSchema(), url.Values{"city": {"Miami"}})

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(restaurantColumns).
		AddRow(int64(1), "Grill", "1 Main St", "Miami", "FL", "33101",
			25.77, -80.19, "active", 4.5, "America/New_York", created, created,
			"meat", "ORB", int64(2), false, false,
			nil, `[{"day":3,"open":"11:00","close":"22:00"}]`).
		AddRow(int64(2), "Dairy", "2 Main St", "Miami", "FL", "33101",
			nil, nil, "active", nil, "America/New_York", created, created,
			"dairy", "", nil, true, true,
			nil, `[]`)
	mock.ExpectQuery(`SELECT .* FROM "restaurants" AS "e" WHERE .*"e"\."city" = \$\d+.* LIMIT \$\d+`).
		WillReturnRows(rows)

	listings, err := a.Fetch(context.Background(), plan, 21, 0)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0].(*entities.Restaurant)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "meat", first.KosherCategory)
	require.NotNil(t, first.PriceLevel)
	assert.Equal(t, 2, *first.PriceLevel)
	require.Len(t, first.Hours, 1)
	assert.Equal(t, "22:00", first.Hours[0].Close)
	assert.Nil(t, first.Distance)

	second := listings[1].(*entities.Restaurant)
	assert.Nil(t, second.Rating)
	assert.Nil(t, second.Latitude)
	assert.True(t, second.CholovYisroel)
	assert.Empty(t, second.Hours)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitySearchAdapter_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected apperrors.ErrorType
	}{
		{name: "statement timeout", err: &pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"}, expected: apperrors.ErrorTypeUpstreamTimeout},
		{name: "deadline", err: context.DeadlineExceeded, expected: apperrors.ErrorTypeUpstreamTimeout},
		{name: "syntax error", err: &pq.Error{Code: "42601", Message: "syntax error"}, expected: apperrors.ErrorTypeInternal},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), expected: apperrors.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newTestAdapter(t)
			plan := buildPlan(t, search.MikvahSchema(), url.Values{})
			mock.ExpectQuery(`SELECT`).WillReturnError(tt.err)

			_, err := a.Fetch(context.Background(), plan, 21, 0)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.expected))

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.NotContains(t, appErr.Message, "syntax")
		})
	}
}

func TestEntitySearchAdapter_Count(t *testing.T) {
	a, mock := newTestAdapter(t)
	plan := buildPlan(t, search.SynagogueSchema(), url.Values{"denomination": {"orthodox"}})

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "synagogues" AS "e" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := a.Count(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitySearchAdapter_FacetValues(t *testing.T) {
	a, mock := newTestAdapter(t)
	plan := buildPlan(t, search.RestaurantSchema(), url.Values{"ratingMin": {"3"}})

	mock.ExpectQuery(`SELECT FLOOR\("e"\."rating"\)::float8 AS "value", COUNT\(\*\) AS "count" FROM "restaurants" AS "e".*GROUP BY "value".*ORDER BY "count" DESC, "value" ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"value", "count"}).
			AddRow(4.0, int64(12)).
			AddRow(3.0, int64(5)))

	values, err := a.FacetValues(context.Background(), plan, search.Facet{Name: "rating", Column: "rating", Bucket: true})
	require.NoError(t, err)
	assert.Equal(t, []search.FacetValue{{Value: 4.0, Count: 12}, {Value: 3.0, Count: 5}}, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitySearchAdapter_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		a, mock := newTestAdapter(t)
		now := time.Now()
		mock.ExpectQuery(`FROM "mikvahs" AS "e" WHERE \("e"\."id" = \$\d+\)`).
			WithArgs(sqlmock.AnyArg(), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "address", "city", "state", "zip_code",
				"latitude", "longitude", "status", "rating", "timezone",
				"created_at", "updated_at",
				"mikvah_type", "appointment_required", "contact_person", "is_wheelchair_accessible",
				"distance", "hours",
			}).AddRow(int64(9), "Mikvah Israel", "", "Boca Raton", "FL", "33431",
				26.36, -80.08, "active", nil, "", now, now,
				"women", true, "Rivka", false, nil, nil))

		l, err := a.GetByID(context.Background(), entities.EntityTypeMikvah, 9)
		require.NoError(t, err)
		m := l.(*entities.Mikvah)
		assert.Equal(t, "women", m.MikvahType)
		assert.True(t, m.AppointmentRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		a, mock := newTestAdapter(t)
		mock.ExpectQuery(`FROM "restaurants"`).WillReturnRows(sqlmock.NewRows(restaurantColumns))

		_, err := a.GetByID(context.Background(), entities.EntityTypeRestaurant, 404)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}
