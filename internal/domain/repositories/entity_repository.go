package repositories

import (
	"context"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/query/search"
)

// EntitySearchRepository defines the read operations of the listing store
type EntitySearchRepository interface {
	search.PageSource
	search.FacetSource

	// GetByID retrieves a single listing of the given type
	GetByID(ctx context.Context, entityType entities.EntityType, id int64) (entities.Listing, error)

	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error
}
