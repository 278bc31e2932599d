package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/infrastructure/clients/postgres"
	"github.com/jewgo/backend/internal/query/search"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

func newImportAdapter(t *testing.T) (*EntityImportAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a := NewEntityImportAdapter(postgres.NewClientFromDB(db))
	a.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }
	return a, mock
}

func TestUpsertSQL(t *testing.T) {
	a, _ := newImportAdapter(t)
	r := &entities.Restaurant{
		Entity: entities.Entity{
			ID:     7,
			Name:   "Shalom Grill",
			City:   "Miami",
			Status: entities.StatusActive,
			Hours:  []entities.HoursPeriod{{Day: 5, Open: "11:00", Close: "15:00"}},
		},
		Agency: "ORB",
	}

	stmts, err := a.upsertSQL(search.RestaurantSchema(), r)
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	assert.Contains(t, stmts[0].query, `INSERT INTO "restaurants"`)
	assert.Contains(t, stmts[0].query, `ON CONFLICT (id) DO UPDATE SET`)
	assert.Contains(t, stmts[0].query, `"agency"=EXCLUDED."agency"`)
	assert.NotContains(t, stmts[0].query, `"created_at"=EXCLUDED`)
	assert.NotContains(t, stmts[0].query, "Shalom Grill")
	assert.Contains(t, stmts[0].args, "Shalom Grill")
	assert.Contains(t, stmts[0].args, entities.DefaultTimezone)

	assert.Contains(t, stmts[1].query, `DELETE FROM "entity_hours"`)
	assert.ElementsMatch(t, []any{"restaurants", int64(7)}, stmts[1].args)

	assert.Contains(t, stmts[2].query, `INSERT INTO "entity_hours"`)
	assert.Contains(t, stmts[2].args, "11:00")
	assert.Contains(t, stmts[2].args, "15:00")
}

func TestEntityImportAdapter_Upsert(t *testing.T) {
	a, mock := newImportAdapter(t)
	listings := []entities.Listing{
		&entities.Mikvah{Entity: entities.Entity{ID: 1, Name: "Mikvah Israel", Status: entities.StatusActive}},
		&entities.Mikvah{Entity: entities.Entity{ID: 2, Name: "Mikvah Chaya", Status: entities.StatusActive}},
	}

	mock.ExpectBegin()
	for range listings {
		mock.ExpectExec(`INSERT INTO "mikvahs"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "entity_hours"`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(`SELECT setval`).WithArgs("mikvahs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, a.Upsert(context.Background(), search.MikvahSchema(), listings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityImportAdapter_UpsertRollsBack(t *testing.T) {
	a, mock := newImportAdapter(t)
	listings := []entities.Listing{
		&entities.Synagogue{Entity: entities.Entity{ID: 3, Name: "Young Israel"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "synagogues"`).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := a.Upsert(context.Background(), search.SynagogueSchema(), listings)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityImportAdapter_UpsertEmpty(t *testing.T) {
	a, mock := newImportAdapter(t)
	require.NoError(t, a.Upsert(context.Background(), search.MikvahSchema(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityImportAdapter_UpsertRejectsUnknownTimezone(t *testing.T) {
	a, mock := newImportAdapter(t)
	listings := []entities.Listing{
		&entities.Restaurant{Entity: entities.Entity{ID: 1, Name: "Shalom Grill", Timezone: "America/New_York"}},
		&entities.Restaurant{Entity: entities.Entity{ID: 2, Name: "Olympus Deli", Timezone: "Mars/Olympus"}},
	}

	err := a.Upsert(context.Background(), search.RestaurantSchema(), listings)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, "timezone", appErr.Field)
	assert.Contains(t, appErr.Message, "Mars/Olympus")
	// nothing reaches the database, so no partial import
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateTimezone(t *testing.T) {
	tests := []struct {
		tz    string
		valid bool
	}{
		{"", true},
		{"America/New_York", true},
		{"Asia/Jerusalem", true},
		{"UTC", true},
		{"Local", false},
		{"Mars/Olympus", false},
		{"EST5EDT; DROP TABLE restaurants", false},
	}
	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			err := validateTimezone(&entities.Entity{ID: 9, Timezone: tt.tz})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
