package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jewgo/backend/internal/adapters/database"
	"github.com/jewgo/backend/internal/adapters/events"
	"github.com/jewgo/backend/internal/adapters/memory"
	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/domain/providers"
	"github.com/jewgo/backend/internal/infrastructure/clients/postgres"
	"github.com/jewgo/backend/internal/infrastructure/clients/redis"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	"github.com/jewgo/backend/internal/query/search"
	"github.com/jewgo/backend/pkg/config"
)

func main() {
	var seedFile string
	flag.StringVar(&seedFile, "file", os.Getenv("STORE_SEED_FILE"), "JSON seed file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("jewgo-seed", cfg.App.Environment)
	logger := observability.GetLogger()

	if seedFile == "" {
		logger.Fatal().Msg("no seed file: pass -file or set STORE_SEED_FILE")
	}
	seed, err := memory.ReadSeed(seedFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read seed file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	if os.Getenv("RESET_DB") == "true" {
		logger.Warn().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx,
			`TRUNCATE TABLE entity_hours, restaurants, synagogues, mikvahs RESTART IDENTITY`,
		); err != nil {
			logger.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	importer := database.NewEntityImportAdapter(pgClient)
	registry := search.DefaultRegistry()
	var seeded []entities.EntityType
	for t, listings := range seed.ByType() {
		schema, err := registry.Lookup(string(t))
		if err != nil {
			logger.Fatal().Err(err).Msg("no schema for seeded type")
		}
		if err := importer.Upsert(ctx, schema, listings); err != nil {
			logger.Fatal().Err(err).Str("entity_type", string(t)).Msg("failed to seed listings")
		}
		seeded = append(seeded, t)
		logger.Info().Str("entity_type", string(t)).Int("count", len(listings)).Msg("seeded listings")
	}

	// running API replicas drop their cached facets
	if !cfg.Redis.Enabled {
		return
	}
	client, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, cached facets expire by TTL")
		return
	}
	defer client.Close()
	bus := events.NewRedisEventBus(client)
	defer bus.Close()
	for _, t := range seeded {
		event := entities.NewEntityChangedEvent(t, 0, entities.EntityEventUpdated)
		if err := bus.Publish(ctx, providers.EventChannelEntityChanged, event); err != nil {
			logger.Warn().Err(err).Str("entity_type", string(t)).Msg("failed to announce seeded listings")
		}
	}
}
