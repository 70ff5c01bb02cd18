package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/searchindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEntryAttempts(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int
		fatal    bool
	}{
		{"transient error is retried", errors.New("connection reset by peer"), 3, false},
		{"unauthorized", fmt.Errorf("elasticsearch 401 security_exception: %w", searchindex.ErrUnauthorized), 1, true},
		{"forbidden index", fmt.Errorf("index exists check: %w", searchindex.ErrUnauthorized), 1, true},
		{"index dimension", fmt.Errorf("%w: got 8, expected 16", searchindex.ErrDimensionMismatch), 1, true},
		{"embedder dimension", fmt.Errorf("%w: provider x returned 8 values", embedding.ErrDimensionMismatch), 1, true},
		{"malformed document", fmt.Errorf("elasticsearch 400 mapper_parsing_exception: %w", searchindex.ErrBadRequest), 1, false},
		{"missing owner", searchindex.ErrOwnerRequired, 1, false},
	}

	cfg := IndexWriteConfig{Retries: 2, RetryBaseDelay: time.Millisecond, Timeout: time.Second}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &rejectingIndex{err: tt.err}
			err := writeEntry(context.Background(), index, cfg, searchindex.Entry{ChunkID: "c1", UserID: "u1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.attempts, index.calls())
			assert.Equal(t, tt.fatal, fatalIndexError(err))
		})
	}
}
