package services

import (
	"context"
	"fmt"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/domain/providers"
	"github.com/jewgo/backend/internal/infrastructure/observability"
)

// Invalidator drops cached facets of one entity type
type Invalidator interface {
	InvalidateFacets(ctx context.Context, entityType entities.EntityType) error
}

// WatchEntityChanges invalidates cached facets whenever a listing write is
// announced on the bus. It returns once subscribed and keeps consuming in the
// background until ctx is done or the bus closes the channel.
func WatchEntityChanges(ctx context.Context, bus providers.EventBus, target Invalidator) error {
	events, err := bus.Subscribe(ctx, providers.EventChannelEntityChanged)
	if err != nil {
		return fmt.Errorf("failed to watch entity changes: %w", err)
	}

	go func() {
		logger := observability.GetLogger()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if event == nil {
					continue
				}
				if err := target.InvalidateFacets(ctx, event.EntityType); err != nil {
					logger.Warn().
						Err(err).
						Str("entity_type", string(event.EntityType)).
						Str("event_id", event.ID).
						Msg("failed to invalidate facet cache")
					continue
				}
				logger.Debug().
					Str("entity_type", string(event.EntityType)).
					Int64("entity_id", event.EntityID).
					Str("event_type", string(event.EventType)).
					Msg("facet cache invalidated")
			}
		}
	}()
	return nil
}
