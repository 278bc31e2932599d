package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

// PageSource executes a plan against a store. Fetch honours plan.Seek and the
// plan ordering; offset is zero in keyset mode.
type PageSource interface {
	Fetch(ctx context.Context, plan *QueryPlan, limit, offset int) ([]entities.Listing, error)
	Count(ctx context.Context, plan *QueryPlan) (int, error)
}

// Pagination describes where a page sits in the result set
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"has_more"`
	HasPrev    bool   `json:"has_prev"`
	NextCursor string `json:"next_cursor,omitempty"`
	Page       int    `json:"page,omitempty"`
	TotalCount *int   `json:"total_count,omitempty"`
}

// Page is one slice of a result set
type Page struct {
	Items      []entities.Listing
	Pagination Pagination
}

// Paginator pages through plans in offset or keyset mode
type Paginator struct {
	codec        *CursorCodec
	defaultLimit int
}

// NewPaginator creates a paginator issuing cursors with codec
func NewPaginator(codec *CursorCodec, defaultLimit int) *Paginator {
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	return &Paginator{codec: codec, defaultLimit: defaultLimit}
}

// Paginate fetches one page. It asks the source for limit+1 rows and uses the
// extra row only to decide has_more.
func (p *Paginator) Paginate(ctx context.Context, src PageSource, plan *QueryPlan, params PageParams) (*Page, error) {
	limit := params.Limit
	if limit < 1 {
		limit = p.defaultLimit
	}

	query := plan
	offset := 0
	result := &Page{Pagination: Pagination{Limit: limit}}

	if params.Offset() {
		offset = (params.Page - 1) * limit
		if offset < 0 || offset/limit != params.Page-1 {
			return nil, apperrors.NewFieldError(ParamPage, apperrors.ReasonInvalidRange, "page is out of range")
		}
		result.Pagination.Page = params.Page
		result.Pagination.HasPrev = params.Page > 1
	} else if params.Cursor != "" {
		seek, err := p.codec.Decode(params.Cursor, plan)
		if err != nil {
			return nil, err
		}
		query = plan.After(seek)
		result.Pagination.HasPrev = true
	}

	var (
		rows  []entities.Listing
		total *int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = src.Fetch(gctx, query, limit+1, offset)
		return err
	})
	if params.IncludeTotal {
		g.Go(func() error {
			n, err := src.Count(gctx, plan)
			if err != nil {
				observability.LoggerFromContext(ctx).Warn().
					Err(err).
					Str("entity_type", string(plan.Schema.Type())).
					Msg("total count unavailable")
				return nil
			}
			total = &n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(rows) > limit {
		rows = rows[:limit]
		result.Pagination.HasMore = true
	}
	result.Items = rows
	result.Pagination.TotalCount = total

	if result.Pagination.HasMore && !params.Offset() {
		cursor, err := p.codec.Encode(plan, plan.SortValues(rows[len(rows)-1]))
		if err != nil {
			return nil, err
		}
		result.Pagination.NextCursor = cursor
	}
	return result, nil
}
