// Command notify announces listing writes made outside the API (imports,
// admin edits) so running API replicas drop their cached facets.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jewgo/backend/internal/adapters/events"
	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/domain/providers"
	"github.com/jewgo/backend/internal/infrastructure/clients/redis"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	"github.com/jewgo/backend/pkg/config"
)

func main() {
	var entityType string
	var entityID int64
	var eventType string
	var fields string

	flag.StringVar(&entityType, "type", "", "Entity type: restaurants, synagogues or mikvahs")
	flag.Int64Var(&entityID, "id", 0, "Listing id; 0 for a bulk change")
	flag.StringVar(&eventType, "event", string(entities.EntityEventUpdated), "created, updated or deleted")
	flag.StringVar(&fields, "fields", "", "Comma-separated changed columns")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("jewgo-notify", cfg.App.Environment)
	logger := observability.GetLogger()

	t, err := entities.ParseEntityType(entityType)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid -type")
	}
	switch entities.EntityEventType(eventType) {
	case entities.EntityEventCreated, entities.EntityEventUpdated, entities.EntityEventDeleted:
	default:
		logger.Fatal().Str("event", eventType).Msg("invalid -event")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 10*time.Second)
	defer cancelTimeout()

	client, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer client.Close()

	bus := events.NewRedisEventBus(client)
	defer bus.Close()

	var changed []string
	if fields != "" {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				changed = append(changed, f)
			}
		}
	}
	event := entities.NewEntityChangedEvent(t, entityID, entities.EntityEventType(eventType), changed...)
	if err := bus.Publish(ctx, providers.EventChannelEntityChanged, event); err != nil {
		logger.Fatal().Err(err).Msg("failed to publish entity change")
	}
	logger.Info().
		Str("entity_type", string(t)).
		Int64("entity_id", entityID).
		Str("event_id", event.ID).
		Msg("entity change published")
}
