package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventPublisher defines the interface for domain event publishing
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Event represents a domain event
type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Aggregate   string                 `json:"aggregate"`
	AggregateID string                 `json:"aggregate_id"`
	Data        map[string]interface{} `json:"data"`
	Version     int                    `json:"version"`
	CreatedAt   int64                  `json:"created_at"`
}

// Event Types
const (
	EventTypeVersionCreated     = "version.created"
	EventTypeVersionRestored    = "version.restored"
	EventTypeWorkflowRolledBack = "workflow.rolled_back"
	EventTypeVersionRemoved     = "version.removed"
)

// NewEvent creates a new domain event
func NewEvent(eventType, aggregate, aggregateID string, data map[string]interface{}, version int) *Event {
	return &Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		Data:        data,
		Version:     version,
		CreatedAt:   time.Now().Unix(),
	}
}

// MetricsRecorder receives business counters from the use cases.
type MetricsRecorder interface {
	VersionCreated(snapshotType string)
	RollbackCompleted(outcome string)
	AuditWriteFailed(action string)
	ReportGenerated()
}

// PayloadValidator checks snapshot payloads before they are stored.
type PayloadValidator interface {
	Validate(data []byte) error
}
