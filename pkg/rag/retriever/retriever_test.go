package retriever

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/pkg/chunker"
	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/rerank"
	"ai-docsearch-be/pkg/searchindex"
	"ai-docsearch-be/pkg/searchindex/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 16

type fixture struct {
	manager  *searchindex.Manager
	backend  *memory.Backend
	embedder *embedding.FallbackProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := memory.NewBackend()
	m, err := searchindex.NewManager(backend, searchindex.ManagerConfig{Dimension: dim}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, m.Ensure(context.Background()))
	emb, err := embedding.NewFallbackProvider(dim)
	require.NoError(t, err)
	return &fixture{manager: m, backend: backend, embedder: emb}
}

func (f *fixture) add(t *testing.T, owner, file, chunkID, content string) {
	t.Helper()
	vec, err := f.embedder.Generate(context.Background(), content)
	require.NoError(t, err)
	require.NoError(t, f.manager.Upsert(context.Background(), searchindex.Entry{
		ChunkID:   chunkID,
		FileID:    file,
		UserID:    owner,
		Content:   content,
		Embedding: vec,
	}))
}

// scriptedReranker scores by a fixed table keyed on content.
type scriptedReranker struct {
	scores map[string]float64
	err    error
	seen   int
}

func (s *scriptedReranker) Name() string    { return "scripted" }
func (s *scriptedReranker) Available() bool { return true }

func (s *scriptedReranker) Rerank(_ context.Context, _ string, docs []string, topK int) ([]rerank.Scored, error) {
	s.seen = len(docs)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]rerank.Scored, len(docs))
	for i, d := range docs {
		out[i] = rerank.Scored{Index: i, Score: s.scores[d]}
	}
	// highest first, stable on index
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

type failingIndex struct{ err error }

func (f failingIndex) Search(context.Context, searchindex.Query) ([]searchindex.Hit, error) {
	return nil, f.err
}

type failingEmbedder struct{ *embedding.FallbackProvider }

func (failingEmbedder) Generate(context.Context, string) ([]float32, error) {
	return nil, errors.New("model not loaded")
}

func TestSearchEndToEndSampleDocument(t *testing.T) {
	f := newFixture(t)
	chunks := chunker.Split("Alpha beta gamma. Delta epsilon.", 20, 5, chunker.DefaultPage)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, 1, c.Page)
		f.add(t, "owner", "doc-1", fmt.Sprintf("chunk-%d", c.Index), c.Content)
	}
	f.add(t, "stranger", "doc-2", "foreign", "Delta Delta Delta")

	r := New(f.embedder, f.manager, nil, DefaultConfig(), logger.NewNopLogger())
	resp, err := r.Search(context.Background(), Request{Query: "Delta", OwnerID: "owner", K: 5, UseHybrid: true})
	require.NoError(t, err)

	ids := make([]string, len(resp.Results))
	for i, res := range resp.Results {
		ids[i] = res.ChunkID
		assert.Equal(t, "doc-1", res.DocumentID)
	}
	assert.Contains(t, ids, "chunk-1")
	assert.NotContains(t, ids, "foreign")
}

func TestSearchDefaultsAndOrdering(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.add(t, "u", "d", fmt.Sprintf("c%02d", i), fmt.Sprintf("document number %d", i))
	}

	r := New(f.embedder, f.manager, rerank.NewPassthrough(), Config{}, logger.NewNopLogger())
	resp, err := r.Search(context.Background(), Request{Query: "document", OwnerID: "u", UseHybrid: true, UseRerank: true})
	require.NoError(t, err)
	assert.False(t, resp.Reranked)
	assert.Len(t, resp.Results, DefaultK)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
		assert.Nil(t, resp.Results[i].RerankScore)
	}
}

func TestSearchRerankKeepsFusedScore(t *testing.T) {
	f := newFixture(t)
	f.add(t, "u", "d", "a", "first passage")
	f.add(t, "u", "d", "b", "second passage")
	f.add(t, "u", "d", "c", "third passage")

	rr := &scriptedReranker{scores: map[string]float64{"first passage": 0.1, "second passage": 0.9, "third passage": 0.5}}
	r := New(f.embedder, f.manager, rr, DefaultConfig(), logger.NewNopLogger())

	resp, err := r.Search(context.Background(), Request{Query: "passage", OwnerID: "u", K: 2, UseHybrid: true, UseRerank: true})
	require.NoError(t, err)
	assert.True(t, resp.Reranked)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "b", resp.Results[0].ChunkID)
	assert.Equal(t, "c", resp.Results[1].ChunkID)
	require.NotNil(t, resp.Results[0].RerankScore)
	assert.Equal(t, 0.9, resp.Results[0].Score)
	assert.Equal(t, 0.9, *resp.Results[0].RerankScore)
	assert.NotEqual(t, resp.Results[0].Score, resp.Results[0].FusedScore)
	assert.Greater(t, resp.Results[0].FusedScore, 0.0)
	// all three candidates reached the reranker, not just K
	assert.Equal(t, 3, rr.seen)
}

func TestSearchRerankFailureFallsBackToFusedOrder(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.add(t, "u", "d", fmt.Sprintf("c%d", i), fmt.Sprintf("text %d", i))
	}
	rr := &scriptedReranker{err: errors.New("rerank timeout")}
	r := New(f.embedder, f.manager, rr, DefaultConfig(), logger.NewNopLogger())

	resp, err := r.Search(context.Background(), Request{Query: "text", OwnerID: "u", K: 2, UseRerank: true})
	require.NoError(t, err)
	assert.False(t, resp.Reranked)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, resp.Results[0].Score, resp.Results[0].FusedScore)
}

func TestSearchSingleCandidateSkipsRerank(t *testing.T) {
	f := newFixture(t)
	f.add(t, "u", "d", "only", "lonely chunk")
	rr := &scriptedReranker{}
	r := New(f.embedder, f.manager, rr, DefaultConfig(), logger.NewNopLogger())

	resp, err := r.Search(context.Background(), Request{Query: "lonely", OwnerID: "u", UseRerank: true})
	require.NoError(t, err)
	assert.False(t, resp.Reranked)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 0, rr.seen)
}

func TestSearchFailuresReturnEmptyTypedError(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		embedder embedding.EmbeddingProvider
		index    Index
	}{
		{name: "index down", embedder: f.embedder, index: failingIndex{err: errors.New("connection refused")}},
		{name: "embedding down", embedder: failingEmbedder{f.embedder}, index: f.manager},
		{name: "timeout", embedder: f.embedder, index: failingIndex{err: context.DeadlineExceeded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.embedder, tt.index, nil, DefaultConfig(), logger.NewNopLogger())
			resp, err := r.Search(context.Background(), Request{Query: "q", OwnerID: "u"})
			assert.ErrorIs(t, err, ErrBackendUnavailable)
			assert.NotNil(t, resp.Results)
			assert.Empty(t, resp.Results)
		})
	}
}

func TestSearchEmptyIndexIsNotAnError(t *testing.T) {
	f := newFixture(t)
	r := New(f.embedder, f.manager, nil, DefaultConfig(), logger.NewNopLogger())

	resp, err := r.Search(context.Background(), Request{Query: "anything", OwnerID: "u"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearchRequiresOwner(t *testing.T) {
	f := newFixture(t)
	r := New(f.embedder, failingIndex{err: errors.New("must not be called")}, nil, DefaultConfig(), logger.NewNopLogger())

	resp, err := r.Search(context.Background(), Request{Query: "q"})
	assert.ErrorIs(t, err, searchindex.ErrOwnerRequired)
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
	assert.Empty(t, resp.Results)
}

func TestCandidateDepth(t *testing.T) {
	tests := []struct {
		name          string
		k, candidates int
		rerank        bool
		wantDepth     int
		wantPool      int
	}{
		{name: "plain", k: 5, candidates: 0, wantDepth: 5, wantPool: 5},
		{name: "oversampled", k: 5, candidates: 50, wantDepth: 5, wantPool: 50},
		{name: "rerank", k: 5, candidates: 0, rerank: true, wantDepth: 15, wantPool: 30},
		{name: "rerank with larger pool", k: 5, candidates: 100, rerank: true, wantDepth: 15, wantPool: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			depth, pool := candidateDepth(tt.k, tt.candidates, tt.rerank)
			assert.Equal(t, tt.wantDepth, depth)
			assert.Equal(t, tt.wantPool, pool)
		})
	}
}
