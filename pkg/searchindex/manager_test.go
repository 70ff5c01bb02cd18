package searchindex_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/pkg/searchindex"
	"ai-docsearch-be/pkg/searchindex/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, backend searchindex.Backend, settings *searchindex.ShardSettings) *searchindex.Manager {
	t.Helper()
	m, err := searchindex.NewManager(backend, searchindex.ManagerConfig{
		Index:     "documents",
		Dimension: 2,
		Settings:  settings,
	}, logger.NewNopLogger())
	require.NoError(t, err)
	return m
}

func TestEnsureIndexFallsBackWhenSettingsRejected(t *testing.T) {
	backend := memory.NewBackend()
	backend.RejectSettings = true
	m := newManager(t, backend, &searchindex.ShardSettings{Shards: 1, Replicas: 1})
	ctx := context.Background()

	require.NoError(t, m.Ensure(ctx))

	def, ok := backend.Definition("documents")
	require.True(t, ok)
	assert.Nil(t, def.Settings)
	assert.Equal(t, 2, def.Dimension)
	assert.Equal(t, searchindex.SimilarityCosine, def.Similarity)

	count, err := m.Count(ctx, searchindex.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(0), m.GetStats(ctx).DocumentCount)
}

func TestEnsureIndexKeepsSettingsWhenAccepted(t *testing.T) {
	backend := memory.NewBackend()
	settings := &searchindex.ShardSettings{Shards: 2, Replicas: 0}
	m := newManager(t, backend, settings)

	require.NoError(t, m.Ensure(context.Background()))
	def, _ := backend.Definition("documents")
	assert.Equal(t, settings, def.Settings)
}

func TestEnsureIndexIsIdempotent(t *testing.T) {
	backend := memory.NewBackend()
	m := newManager(t, backend, nil)
	ctx := context.Background()

	require.NoError(t, m.Ensure(ctx))
	require.NoError(t, m.Upsert(ctx, searchindex.Entry{ChunkID: "c1", UserID: "u1", Embedding: []float32{1, 0}}))
	require.NoError(t, m.Ensure(ctx))

	count, err := m.Count(ctx, searchindex.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// otherFailure fails create for a reason unrelated to settings.
type otherFailure struct {
	*memory.Backend
	calls int
}

func (o *otherFailure) CreateIndex(context.Context, string, searchindex.IndexDefinition) error {
	o.calls++
	return errors.New("mapper_parsing_exception: unknown field type")
}

func TestEnsureIndexPropagatesOtherErrors(t *testing.T) {
	backend := &otherFailure{Backend: memory.NewBackend()}
	m := newManager(t, backend, &searchindex.ShardSettings{Shards: 1})

	err := m.Ensure(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, searchindex.ErrSettingsRejected)
	assert.Equal(t, 1, backend.calls)
}

func TestEnsureIndexInvalidDimension(t *testing.T) {
	m := newManager(t, memory.NewBackend(), nil)
	assert.ErrorIs(t, m.EnsureIndex(context.Background(), "x", 0, searchindex.SimilarityCosine), searchindex.ErrInvalidDimension)

	_, err := searchindex.NewManager(memory.NewBackend(), searchindex.ManagerConfig{}, logger.NewNopLogger())
	assert.ErrorIs(t, err, searchindex.ErrInvalidDimension)
}

func TestUpsertValidation(t *testing.T) {
	m := newManager(t, memory.NewBackend(), nil)
	ctx := context.Background()
	require.NoError(t, m.Ensure(ctx))

	tests := []struct {
		name    string
		entry   searchindex.Entry
		wantErr error
	}{
		{name: "wrong dimension", entry: searchindex.Entry{ChunkID: "c", UserID: "u", Embedding: []float32{1, 2, 3}}, wantErr: searchindex.ErrDimensionMismatch},
		{name: "missing owner", entry: searchindex.Entry{ChunkID: "c", Embedding: []float32{1, 2}}, wantErr: searchindex.ErrOwnerRequired},
		{name: "missing chunk id", entry: searchindex.Entry{UserID: "u", Embedding: []float32{1, 2}}, wantErr: searchindex.ErrMissingChunkID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Upsert(ctx, tt.entry), tt.wantErr)
		})
	}
}

func TestSearchNeverLeaksOtherOwners(t *testing.T) {
	m := newManager(t, memory.NewBackend(), nil)
	ctx := context.Background()
	require.NoError(t, m.Ensure(ctx))

	for i := 0; i < 20; i++ {
		owner := "alice"
		if i%2 == 1 {
			owner = "bob"
		}
		require.NoError(t, m.Upsert(ctx, searchindex.Entry{
			ChunkID:   fmt.Sprintf("c%02d", i),
			FileID:    "f-" + owner,
			UserID:    owner,
			Content:   "shared words delta",
			Embedding: []float32{float32(i), 1},
		}))
	}

	for _, hybrid := range []bool{true, false} {
		hits, err := m.Search(ctx, searchindex.Query{
			OwnerID: "alice",
			Text:    "delta",
			Vector:  []float32{19, 1},
			K:       50,
			Hybrid:  hybrid,
		})
		require.NoError(t, err)
		assert.Len(t, hits, 10)
		for i, h := range hits {
			assert.Equal(t, "alice", h.UserID)
			assert.Nil(t, h.Embedding)
			if i > 0 {
				assert.GreaterOrEqual(t, hits[i-1].Score, h.Score)
			}
		}
	}

	_, err := m.Search(ctx, searchindex.Query{Vector: []float32{1, 1}})
	assert.ErrorIs(t, err, searchindex.ErrOwnerRequired)
}

func TestHybridKeywordNudgesRanking(t *testing.T) {
	m := newManager(t, memory.NewBackend(), nil)
	ctx := context.Background()
	require.NoError(t, m.Ensure(ctx))

	// identical vectors, only the keyword differs
	require.NoError(t, m.Upsert(ctx, searchindex.Entry{ChunkID: "a", UserID: "u", Content: "alpha beta", Embedding: []float32{1, 1}}))
	require.NoError(t, m.Upsert(ctx, searchindex.Entry{ChunkID: "b", UserID: "u", Content: "delta epsilon", Embedding: []float32{1, 1}}))

	hits, err := m.Search(ctx, searchindex.Query{OwnerID: "u", Text: "delta", Vector: []float32{1, 1}, K: 2, Hybrid: true})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].ChunkID)

	hits, err = m.Search(ctx, searchindex.Query{OwnerID: "u", Text: "delta", Vector: []float32{1, 1}, K: 2})
	require.NoError(t, err)
	// equal scores fall back to chunk id order
	assert.Equal(t, "a", hits[0].ChunkID)
}

func TestDeleteByFileAndOwner(t *testing.T) {
	m := newManager(t, memory.NewBackend(), nil)
	ctx := context.Background()
	require.NoError(t, m.Ensure(ctx))

	entries := []searchindex.Entry{
		{ChunkID: "1", FileID: "f1", UserID: "u1", Embedding: []float32{1, 0}},
		{ChunkID: "2", FileID: "f1", UserID: "u1", Embedding: []float32{1, 0}},
		{ChunkID: "3", FileID: "f2", UserID: "u1", Embedding: []float32{1, 0}},
		{ChunkID: "4", FileID: "f3", UserID: "u2", Embedding: []float32{1, 0}},
	}
	for _, e := range entries {
		require.NoError(t, m.Upsert(ctx, e))
	}

	deleted, err := m.DeleteByFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = m.DeleteByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = m.DeleteByFile(ctx, "")
	assert.ErrorIs(t, err, searchindex.ErrEmptyFilter)
	_, err = m.DeleteByOwner(ctx, "")
	assert.ErrorIs(t, err, searchindex.ErrOwnerRequired)

	count, err := m.Count(ctx, searchindex.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetStatsNeverFails(t *testing.T) {
	backend := memory.NewBackend()
	m := newManager(t, backend, nil)

	// index missing: count fails and falls back to zero
	stats := m.GetStats(context.Background())
	assert.Equal(t, int64(0), stats.DocumentCount)
	assert.Nil(t, stats.SizeInBytes)
	assert.Equal(t, "documents", stats.Index)

	backend.Unavailable = errors.New("connection refused")
	stats = m.GetStats(context.Background())
	assert.Equal(t, int64(0), stats.DocumentCount)
}
