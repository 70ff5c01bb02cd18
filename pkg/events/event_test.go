package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDocumentEvent(t *testing.T) {
	e := NewDocumentEvent(DocumentProcessed, "u1", "d1", map[string]interface{}{
		"chunks_created": 3,
		"index_gaps":     0,
	})

	assert.Equal(t, DocumentProcessed, e.EventType())
	assert.Equal(t, "u1", e.Payload()["user_id"])
	assert.Equal(t, "d1", e.Payload()["document_id"])
	assert.Equal(t, 3, e.Payload()["chunks_created"])
	assert.NotEmpty(t, e.Payload()["occurred_at"])
	assert.False(t, e.Timestamp().IsZero())
}
