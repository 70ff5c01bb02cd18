package nats

import (
	"testing"
	"time"

	"ai-docsearch-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEventRoundTripsDocumentEvent(t *testing.T) {
	original := events.NewDocumentEvent(events.DocumentProcessed, "u1", "d1", map[string]interface{}{"index_gaps": 2})

	decoded := decodeEvent("events."+original.EventType(), original.Payload())

	assert.Equal(t, events.DocumentProcessed, decoded.EventType())
	assert.Equal(t, "d1", decoded.Payload()["document_id"])
	assert.WithinDuration(t, original.Timestamp(), decoded.Timestamp(), time.Second)
}

func TestDecodeEventWithoutTimestamp(t *testing.T) {
	decoded := decodeEvent("events.DOCUMENT_DELETED", map[string]interface{}{})
	assert.Equal(t, events.DocumentDeleted, decoded.EventType())
	assert.False(t, decoded.Timestamp().IsZero())
}

func TestMsgIDIsStablePerEvent(t *testing.T) {
	e := events.NewDocumentEvent(events.DocumentFailed, "u1", "d1", nil)
	assert.Equal(t, msgID(e), msgID(e))
	assert.Contains(t, msgID(e), "DOCUMENT_FAILED:d1:")
}
