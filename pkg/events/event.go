package events

import (
	"context"
	"time"
)

const (
	DocumentProcessed = "DOCUMENT_PROCESSED"
	DocumentFailed    = "DOCUMENT_FAILED"
	DocumentDeleted   = "DOCUMENT_DELETED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOCUMENT_PROCESSED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher is satisfied by the NATS publisher. Services hold it as an
// optional dependency.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewDocumentEvent stamps the payload with the owner, document and time so
// subscribers can rebuild the event from the message body alone.
func NewDocumentEvent(eventType, userId, documentId string, data map[string]interface{}) BaseEvent {
	now := time.Now().UTC()
	payload := map[string]interface{}{
		"user_id":     userId,
		"document_id": documentId,
		"occurred_at": now.Format(time.RFC3339),
	}
	for k, v := range data {
		payload[k] = v
	}
	return BaseEvent{Type: eventType, Data: payload, OccurredAt: now}
}
