package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/domain/repositories"
	"github.com/jewgo/backend/internal/infrastructure/clients/postgres"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	"github.com/jewgo/backend/internal/query/search"
	apperrors "github.com/jewgo/backend/pkg/errors"
	"github.com/jewgo/backend/pkg/geo"
)

// pqQueryCanceled is SQLSTATE 57014, raised when statement_timeout fires or a
// query is cancelled
const pqQueryCanceled = "57014"

const (
	entityAlias     = "e"
	distanceColumn  = "distance"
	hoursColumn     = "hours"
	facetValueAlias = "value"
	facetCountAlias = "count"
)

// EntitySearchAdapter runs query plans against PostgreSQL with PostGIS. Every
// value reaches the server as a bound parameter.
type EntitySearchAdapter struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
	timeout time.Duration
	metrics *observability.Metrics
}

var _ repositories.EntitySearchRepository = (*EntitySearchAdapter)(nil)

// NewEntitySearchAdapter creates a new search adapter. timeout bounds each query.
func NewEntitySearchAdapter(client *postgres.Client, timeout time.Duration, metrics *observability.Metrics) *EntitySearchAdapter {
	return &EntitySearchAdapter{
		client:  client,
		dialect: goqu.Dialect("postgres"),
		timeout: timeout,
		metrics: metrics,
	}
}

// Fetch returns up to limit listings in plan order
func (a *EntitySearchAdapter) Fetch(ctx context.Context, plan *search.QueryPlan, limit, offset int) ([]entities.Listing, error) {
	query, args, err := a.selectSQL(plan, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search query", err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "search.fetch", time.Since(start)) }()

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(ctx, "search query failed", err)
	}
	defer rows.Close()

	var listings []entities.Listing
	for rows.Next() {
		l, err := scanListing(rows, plan.Schema.NewListing())
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan listing", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(ctx, "search query failed", err)
	}
	return listings, nil
}

// Count returns the number of listings matching the plan filters
func (a *EntitySearchAdapter) Count(ctx context.Context, plan *search.QueryPlan) (int, error) {
	query, args, err := a.countSQL(plan)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "search.count", time.Since(start)) }()

	var n int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, translateError(ctx, "count query failed", err)
	}
	return n, nil
}

// FacetValues groups the listings matching plan by the facet column, most
// frequent first. Null and empty values are not reported.
func (a *EntitySearchAdapter) FacetValues(ctx context.Context, plan *search.QueryPlan, facet search.Facet) ([]search.FacetValue, error) {
	query, args, err := a.facetSQL(plan, facet)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facet query", err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "search.facet", time.Since(start)) }()

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(ctx, "facet query failed", err)
	}
	defer rows.Close()

	values := []search.FacetValue{}
	for rows.Next() {
		var (
			fv    search.FacetValue
			err   error
			count int
		)
		if facet.Bucket {
			var bucket float64
			err = rows.Scan(&bucket, &count)
			fv.Value = bucket
		} else {
			var value string
			err = rows.Scan(&value, &count)
			fv.Value = value
		}
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facet value", err)
		}
		fv.Count = count
		values = append(values, fv)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(ctx, "facet query failed", err)
	}
	return values, nil
}

// GetByID retrieves one listing regardless of status
func (a *EntitySearchAdapter) GetByID(ctx context.Context, entityType entities.EntityType, id int64) (entities.Listing, error) {
	listing, err := entities.NewListing(entityType)
	if err != nil {
		return nil, apperrors.NewNotFoundError(err.Error())
	}
	query, args, err := a.dialect.From(goqu.T(tableFor(entityType)).As(entityAlias)).
		Prepared(true).
		Select(a.selectColumns(entityType, listing, nil)...).
		Where(col("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build lookup query", err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(ctx, "lookup query failed", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, translateError(ctx, "lookup query failed", err)
		}
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s %d not found", entityType, id))
	}
	l, err := scanListing(rows, listing)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan listing", err)
	}
	return l, nil
}

// Ping verifies the database is reachable
func (a *EntitySearchAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *EntitySearchAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *EntitySearchAdapter) selectSQL(plan *search.QueryPlan, limit, offset int) (string, []interface{}, error) {
	ds := a.filtered(plan).
		Select(a.selectColumns(plan.Schema.Type(), plan.Schema.NewListing(), plan.Origin)...).
		Order(orderBy(plan)...).
		Limit(uint(limit))
	if seek := seekCondition(plan); seek != nil {
		ds = ds.Where(seek)
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}
	return ds.ToSQL()
}

func (a *EntitySearchAdapter) countSQL(plan *search.QueryPlan) (string, []interface{}, error) {
	return a.filtered(plan).Select(goqu.COUNT(goqu.Star())).ToSQL()
}

func (a *EntitySearchAdapter) facetSQL(plan *search.QueryPlan, facet search.Facet) (string, []interface{}, error) {
	var value exp.Expression = col(facet.Column)
	present := col(facet.Column).Neq("")
	if facet.Bucket {
		value = goqu.L(`FLOOR(?)::float8`, col(facet.Column))
		present = col(facet.Column).IsNotNull()
	}
	return a.filtered(plan).
		Select(
			goqu.L("?", value).As(facetValueAlias),
			goqu.COUNT(goqu.Star()).As(facetCountAlias),
		).
		Where(present).
		GroupBy(goqu.I(facetValueAlias)).
		Order(goqu.I(facetCountAlias).Desc(), goqu.I(facetValueAlias).Asc()).
		ToSQL()
}

// filtered applies every plan filter except the seek position
func (a *EntitySearchAdapter) filtered(plan *search.QueryPlan) *goqu.SelectDataset {
	ds := a.dialect.From(goqu.T(plan.Schema.Table()).As(entityAlias)).Prepared(true)

	for _, p := range plan.Predicates {
		ds = ds.Where(predicateExpression(p))
	}
	if plan.Geo != nil {
		ds = ds.Where(goqu.L(
			`ST_DWithin(e.location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)`,
			plan.Geo.Center.Longitude, plan.Geo.Center.Latitude, geo.MilesToMeters(plan.Geo.RadiusMiles),
		))
	}
	if plan.Hours != nil {
		ds = ds.Where(hoursExpression(plan.Schema.Type(), plan.Hours))
	}
	return ds
}

func (a *EntitySearchAdapter) selectColumns(entityType entities.EntityType, listing entities.Listing, origin *geo.Point) []interface{} {
	cols := make([]interface{}, 0, len(listing.Columns())+2)
	for _, c := range listing.Columns() {
		cols = append(cols, col(c))
	}
	if origin != nil {
		cols = append(cols, distanceExpression(*origin).As(distanceColumn))
	} else {
		cols = append(cols, goqu.L("NULL::float8").As(distanceColumn))
	}
	cols = append(cols, goqu.L(`(
		SELECT COALESCE(json_agg(json_build_object(
			'day', h.day_of_week,
			'open', to_char(h.open_time, 'HH24:MI'),
			'close', to_char(h.close_time, 'HH24:MI')
		) ORDER BY h.day_of_week, h.open_time), '[]'::json)
		FROM entity_hours h
		WHERE h.entity_type = ? AND h.entity_id = e.id
	)`, string(entityType)).As(hoursColumn))
	return cols
}

func col(name string) exp.IdentifierExpression {
	return goqu.I(entityAlias + "." + name)
}

func distanceExpression(origin geo.Point) exp.LiteralExpression {
	return goqu.L(
		`ST_Distance(e.location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) / ?`,
		origin.Longitude, origin.Latitude, geo.MetersPerMile,
	)
}

func predicateExpression(p search.Predicate) exp.Expression {
	c := col(p.Column)
	switch p.Op {
	case search.OpContains:
		needle, _ := p.Values[0].(string)
		return c.ILike("%" + escapeLike(needle) + "%")
	case search.OpIn:
		return c.In(p.Values...)
	case search.OpGte:
		return c.Gte(p.Values[0])
	case search.OpLte:
		return c.Lte(p.Values[0])
	default:
		return c.Eq(p.Values[0])
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// hoursExpression keeps listings with an opening period inside the window on
// the listing's local day. Periods closing before they open run past midnight.
func hoursExpression(entityType entities.EntityType, hours *search.HoursFilter) exp.Expression {
	const local = `CROSS JOIN LATERAL (
			SELECT (?::timestamptz AT TIME ZONE COALESCE(NULLIF(e.timezone, ''), ?)) AS at
		) n`
	const today = `h.day_of_week = EXTRACT(DOW FROM n.at)::int`
	const yesterday = `h.day_of_week = (EXTRACT(DOW FROM n.at)::int + 6) % 7`

	at := hours.At.UTC().Format(time.RFC3339Nano)
	start, end, bounded := hours.Window.Bounds()
	if !bounded {
		return goqu.L(`EXISTS (
			SELECT 1 FROM entity_hours h `+local+`
			WHERE h.entity_type = ? AND h.entity_id = e.id AND (
				(`+today+` AND h.open_time < h.close_time AND n.at::time >= h.open_time AND n.at::time < h.close_time)
				OR (`+today+` AND h.close_time < h.open_time AND n.at::time >= h.open_time)
				OR (`+yesterday+` AND h.close_time < h.open_time AND n.at::time < h.close_time)
			)
		)`, at, entities.DefaultTimezone, string(entityType))
	}
	return goqu.L(`EXISTS (
		SELECT 1 FROM entity_hours h `+local+`
		WHERE h.entity_type = ? AND h.entity_id = e.id AND h.open_time <> h.close_time AND (
			(`+today+` AND h.open_time < ?::time AND (h.close_time < h.open_time OR h.close_time > ?::time))
			OR (`+yesterday+` AND h.close_time < h.open_time AND h.close_time > ?::time)
		)
	)`, at, entities.DefaultTimezone, string(entityType), end, start, start)
}

func sortExpression(plan *search.QueryPlan, key search.SortKey) interface {
	exp.Comparable
	exp.Isable
	exp.Orderable
} {
	switch key {
	case search.KeyDistance:
		if plan.Origin == nil {
			return goqu.L("NULL::float8")
		}
		return distanceExpression(*plan.Origin)
	case search.KeyRating:
		return col("rating")
	case search.KeyName:
		return col("name")
	case search.KeyCreatedAt:
		return col("created_at")
	default:
		return col("id")
	}
}

func orderBy(plan *search.QueryPlan) []exp.OrderedExpression {
	order := make([]exp.OrderedExpression, 0, len(plan.Order))
	for _, k := range plan.Order {
		e := sortExpression(plan, k.Key)
		var o exp.OrderedExpression
		if k.Desc {
			o = e.Desc()
		} else {
			o = e.Asc()
		}
		if k.Nullable {
			o = o.NullsLast()
		}
		order = append(order, o)
	}
	return order
}

// seekCondition expands "row comes after plan.Seek" over the ordering. Each
// disjunct fixes a prefix of keys and steps past the next one; with NULLS LAST a
// null key can only be followed by more nulls.
func seekCondition(plan *search.QueryPlan) exp.Expression {
	if plan.Seek == nil {
		return nil
	}
	var disjuncts []exp.Expression
	for i, k := range plan.Order {
		if i >= len(plan.Seek) {
			break
		}
		conj := make([]exp.Expression, 0, i+1)
		for j := 0; j < i; j++ {
			e := sortExpression(plan, plan.Order[j].Key)
			if plan.Seek[j] == nil {
				conj = append(conj, e.IsNull())
			} else {
				conj = append(conj, e.Eq(plan.Seek[j]))
			}
		}

		v := plan.Seek[i]
		if v == nil {
			continue
		}
		e := sortExpression(plan, k.Key)
		var step exp.Expression
		if k.Desc {
			step = e.Lt(v)
		} else {
			step = e.Gt(v)
		}
		if k.Nullable {
			step = goqu.Or(step, e.IsNull())
		}
		conj = append(conj, step)
		disjuncts = append(disjuncts, goqu.And(conj...))
	}
	if len(disjuncts) == 0 {
		return goqu.L("FALSE")
	}
	return goqu.Or(disjuncts...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(rows rowScanner, listing entities.Listing) (entities.Listing, error) {
	var (
		distance sql.NullFloat64
		hours    []byte
	)
	targets := append(listing.ScanTargets(), &distance, &hours)
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}
	base := listing.Base()
	if distance.Valid {
		d := distance.Float64
		base.Distance = &d
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &base.Hours); err != nil {
			return nil, fmt.Errorf("decode hours: %w", err)
		}
	}
	return listing, nil
}

// translateError maps driver failures to typed errors without exposing SQL
func translateError(ctx context.Context, msg string, err error) error {
	var pqErr *pq.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.NewUpstreamTimeoutError(msg, err)
	case errors.As(err, &pqErr) && string(pqErr.Code) == pqQueryCanceled:
		return apperrors.NewUpstreamTimeoutError(msg, err)
	}
	observability.LoggerFromContext(ctx).Error().Err(err).Msg(msg)
	return apperrors.NewInternalError(msg, err)
}

func tableFor(entityType entities.EntityType) string {
	return string(entityType)
}
