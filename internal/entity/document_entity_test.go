package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to DocumentStatus
		allowed  bool
	}{
		{DocumentStatusUploaded, DocumentStatusProcessing, true},
		{DocumentStatusProcessing, DocumentStatusProcessed, true},
		{DocumentStatusProcessing, DocumentStatusFailed, true},
		{DocumentStatusUploaded, DocumentStatusFailed, false},
		{DocumentStatusUploaded, DocumentStatusProcessed, false},
		{DocumentStatusProcessed, DocumentStatusProcessing, false},
		{DocumentStatusFailed, DocumentStatusProcessing, false},
		{DocumentStatusProcessed, DocumentStatusFailed, false},
		{DocumentStatusProcessing, DocumentStatusUploaded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
			err := CheckTransition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidStatusTransition)
			}
		})
	}
}

func TestDocumentStatusValid(t *testing.T) {
	assert.True(t, DocumentStatusFailed.Valid())
	assert.False(t, DocumentStatus("archived").Valid())
}
