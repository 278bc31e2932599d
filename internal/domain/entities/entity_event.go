package entities

import (
	"time"

	"github.com/google/uuid"
)

// EntityEventType represents what happened to a listing
type EntityEventType string

const (
	EntityEventCreated EntityEventType = "created"
	EntityEventUpdated EntityEventType = "updated"
	EntityEventDeleted EntityEventType = "deleted"
)

// EntityChangedEvent announces a listing write. Consumers use it to drop
// derived data such as cached facet counts.
type EntityChangedEvent struct {
	ID            string          `json:"id"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      int64           `json:"entity_id"`
	EventType     EntityEventType `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
}

// NewEntityChangedEvent creates a new entity event
func NewEntityChangedEvent(entityType EntityType, entityID int64, eventType EntityEventType, changedFields ...string) *EntityChangedEvent {
	return &EntityChangedEvent{
		ID:            uuid.NewString(),
		EntityType:    entityType,
		EntityID:      entityID,
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		ChangedFields: changedFields,
	}
}
