package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jewgo/backend/internal/adapters/cache"
	"github.com/jewgo/backend/internal/adapters/database"
	"github.com/jewgo/backend/internal/adapters/events"
	"github.com/jewgo/backend/internal/adapters/memory"
	"github.com/jewgo/backend/internal/api/handlers"
	"github.com/jewgo/backend/internal/api/routes"
	"github.com/jewgo/backend/internal/domain/repositories"
	"github.com/jewgo/backend/internal/infrastructure/clients/postgres"
	"github.com/jewgo/backend/internal/infrastructure/clients/redis"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	queryadapters "github.com/jewgo/backend/internal/query/adapters"
	"github.com/jewgo/backend/internal/query/search"
	"github.com/jewgo/backend/internal/query/services"
	"github.com/jewgo/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.App.Name, cfg.App.Environment)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	var store repositories.EntitySearchRepository
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		memStore, err := memory.LoadSeedFile(cfg.Store.SeedFile)
		if err != nil {
			logger.Fatal().Err(err).Str("seed_file", cfg.Store.SeedFile).Msg("failed to load seed file")
		}
		store = memStore
		logger.Info().Str("seed_file", cfg.Store.SeedFile).Msg("using in-memory store")
	default:
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		store = database.NewEntitySearchAdapter(pgClient, cfg.Search.QueryTimeout, metrics)
	}

	// Facets are cached in Redis when available so every replica sees the
	// same invalidations; otherwise in process.
	var facetCache search.FacetCache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-process facet cache")
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		facetCache = queryadapters.NewRedisFacetCache(cache.NewRedisAdapter(redisClient), cfg.Search.FacetCacheTTL, metrics)
	} else {
		facetCache = queryadapters.NewLRUFacetCache(cfg.Search.FacetCacheSize, cfg.Search.FacetCacheTTL, metrics)
	}

	queryService := services.NewEntityQueryService(store, cfg.Search, facetCache, services.WithMetrics(metrics))

	if redisClient != nil {
		bus := events.NewRedisEventBus(redisClient)
		defer bus.Close()
		if err := services.WatchEntityChanges(ctx, bus, queryService); err != nil {
			logger.Warn().Err(err).Msg("facet cache will only expire by TTL")
		}
	}

	router := routes.NewRouter(
		handlers.NewEntityHandler(queryService),
		handlers.NewHealthHandler(store),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("store", cfg.Store.Driver).Msg("directory API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}
	logger.Info().Msg("server stopped")
}
