package routes

import (
	"net/http"

	"github.com/jewgo/backend/internal/api/handlers"
	"github.com/jewgo/backend/internal/api/middleware"
	"github.com/jewgo/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux            *http.ServeMux
	entityHandler  *handlers.EntityHandler
	healthHandler  *handlers.HealthHandler
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	entityHandler *handlers.EntityHandler,
	healthHandler *handlers.HealthHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		entityHandler:  entityHandler,
		healthHandler:  healthHandler,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)
	r.mux.HandleFunc("GET /ready", r.healthHandler.Ready)

	// Directory endpoints; {entityType} is restaurants, synagogues or mikvahs
	r.mux.HandleFunc("GET /api/v1/{entityType}", r.entityHandler.Search)
	r.mux.HandleFunc("GET /api/v1/{entityType}/filter-options", r.entityHandler.FilterOptions)
	r.mux.HandleFunc("GET /api/v1/{entityType}/{id}", r.entityHandler.GetByID)

	// Apply middleware in reverse order (last middleware wraps first).
	// Observability sits directly on the mux so it sees the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflights never reach the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
