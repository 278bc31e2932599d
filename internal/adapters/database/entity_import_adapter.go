package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/infrastructure/clients/postgres"
	"github.com/jewgo/backend/internal/query/search"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

// EntityImportAdapter bulk-loads listings, for seeding and data imports
type EntityImportAdapter struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
	now     func() time.Time
}

// NewEntityImportAdapter creates a new import adapter
func NewEntityImportAdapter(client *postgres.Client) *EntityImportAdapter {
	return &EntityImportAdapter{
		client:  client,
		dialect: goqu.Dialect("postgres"),
		now:     time.Now,
	}
}

// Upsert writes listings by id and replaces their opening hours, all in one
// transaction.
func (a *EntityImportAdapter) Upsert(ctx context.Context, schema search.Schema, listings []entities.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	for _, l := range listings {
		if err := validateTimezone(l.Base()); err != nil {
			return err
		}
	}

	tx, err := a.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin import", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, l := range listings {
		stmts, err := a.upsertSQL(schema, l)
		if err != nil {
			return apperrors.NewInternalError("failed to build import query", err)
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
				return apperrors.NewInternalError(fmt.Sprintf("failed to import %s %d", schema.Type(), l.Base().ID), err)
			}
		}
	}

	// explicit ids leave the serial behind
	table := pq.QuoteIdentifier(schema.Table())
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence($1, 'id'), (SELECT COALESCE(MAX(id), 1) FROM %s))`, table,
	), schema.Table()); err != nil {
		return apperrors.NewInternalError("failed to advance id sequence", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit import", err)
	}
	return nil
}

// validateTimezone rejects zone names PostgreSQL could not resolve in an
// AT TIME ZONE. An empty zone falls back to DefaultTimezone.
func validateTimezone(base *entities.Entity) error {
	if base.Timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(base.Timezone); err != nil || base.Timezone == "Local" {
		return apperrors.NewFieldError("timezone", apperrors.ReasonInvalidEnumValue,
			fmt.Sprintf("listing %d has unknown timezone %q", base.ID, base.Timezone))
	}
	return nil
}

type statement struct {
	query string
	args  []any
}

func (a *EntityImportAdapter) upsertSQL(schema search.Schema, l entities.Listing) ([]statement, error) {
	base := l.Base()
	now := a.now().UTC()

	record := goqu.Record{}
	update := goqu.Record{}
	for _, column := range l.Columns() {
		v, _ := l.Field(column)
		record[column] = v
		if column != "id" && column != "created_at" {
			update[column] = goqu.L("EXCLUDED." + pq.QuoteIdentifier(column))
		}
	}
	if base.CreatedAt.IsZero() {
		record["created_at"] = now
	}
	if base.UpdatedAt.IsZero() {
		record["updated_at"] = now
	}
	if base.Timezone == "" {
		record["timezone"] = entities.DefaultTimezone
	}

	var stmts []statement
	query, args, err := a.dialect.Insert(schema.Table()).
		Rows(record).
		OnConflict(goqu.DoUpdate("id", update)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, statement{query, args})

	owner := goqu.Ex{"entity_type": string(schema.Type()), "entity_id": base.ID}
	query, args, err = a.dialect.Delete("entity_hours").Where(owner).Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, statement{query, args})

	if len(base.Hours) == 0 {
		return stmts, nil
	}
	rows := make([]any, 0, len(base.Hours))
	for _, h := range base.Hours {
		rows = append(rows, goqu.Record{
			"entity_type": string(schema.Type()),
			"entity_id":   base.ID,
			"day_of_week": h.Day,
			"open_time":   h.Open,
			"close_time":  h.Close,
		})
	}
	query, args, err = a.dialect.Insert("entity_hours").Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return append(stmts, statement{query, args}), nil
}
