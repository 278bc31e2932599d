package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/query/search"
	"github.com/jewgo/backend/internal/query/services"
	apperrors "github.com/jewgo/backend/pkg/errors"
)

// DirectoryService is the read side the handler depends on
type DirectoryService interface {
	Search(ctx context.Context, entityType string, params url.Values) (*services.SearchResult, error)
	FilterOptions(ctx context.Context, entityType string, params url.Values) (search.FacetSet, error)
	GetByID(ctx context.Context, entityType string, id int64) (entities.Listing, error)
}

// EntityHandler handles directory listing requests
type EntityHandler struct {
	service DirectoryService
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(service DirectoryService) *EntityHandler {
	return &EntityHandler{service: service}
}

// Search handles GET /api/v1/{entityType}
func (h *EntityHandler) Search(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Search(r.Context(), r.PathValue("entityType"), r.URL.Query())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	items := result.Items
	if items == nil {
		items = []entities.Listing{}
	}
	body := map[string]any{
		"success":    true,
		"data":       items,
		"pagination": result.Pagination,
	}
	// null when requested but every facet failed
	if result.FacetsRequested {
		body["filterOptions"] = result.Facets
	}
	respondWithJSON(w, http.StatusOK, body)
}

// FilterOptions handles GET /api/v1/{entityType}/filter-options
func (h *EntityHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.FilterOptions(r.Context(), r.PathValue("entityType"), r.URL.Query())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"filterOptions": set,
	})
}

// GetByID handles GET /api/v1/{entityType}/{id}
func (h *EntityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		respondWithError(w, r, apperrors.NewFieldError("id", apperrors.ReasonInvalidNumber, "id must be a positive integer"))
		return
	}

	listing, err := h.service.GetByID(r.Context(), r.PathValue("entityType"), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    listing,
	})
}
