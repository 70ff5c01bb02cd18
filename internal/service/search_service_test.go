package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ai-docsearch-be/internal/dto"
	"ai-docsearch-be/pkg/rag/retriever"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	last retriever.Request
	res  retriever.Response
	err  error
}

func (s *stubSearcher) Search(_ context.Context, req retriever.Request) (retriever.Response, error) {
	s.last = req
	return s.res, s.err
}

func TestSearchDefaultsToHybridWithRerank(t *testing.T) {
	f := newServiceFixture(t)
	rerank := 0.9
	stub := &stubSearcher{res: retriever.Response{
		Reranked: true,
		Results: []retriever.Result{
			{ChunkID: "c1", DocumentID: "d1", Content: "Delta", Score: 0.9, FusedScore: 0.4, RerankScore: &rerank},
		},
	}}
	svc := NewSearchService(stub, f.manager, f.log)
	owner := uuid.New()

	res, err := svc.Search(context.Background(), owner, &dto.SearchRequest{Query: "Delta"})
	require.NoError(t, err)
	assert.True(t, stub.last.UseHybrid)
	assert.True(t, stub.last.UseRerank)
	assert.Equal(t, owner.String(), stub.last.OwnerID)
	assert.False(t, res.Degraded)
	assert.True(t, res.Reranked)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, 0.9, res.Results[0].SimilarityScore)
	assert.Equal(t, 0.4, res.Results[0].OriginalSimilarity)

	off := false
	_, err = svc.Search(context.Background(), owner, &dto.SearchRequest{Query: "Delta", Hybrid: &off, Rerank: &off, K: 3})
	require.NoError(t, err)
	assert.False(t, stub.last.UseHybrid)
	assert.False(t, stub.last.UseRerank)
	assert.Equal(t, 3, stub.last.K)
}

func TestSearchDegradesWhenBackendUnavailable(t *testing.T) {
	f := newServiceFixture(t)
	stub := &stubSearcher{
		res: retriever.Response{Results: []retriever.Result{}},
		err: fmt.Errorf("%w: %w", retriever.ErrBackendUnavailable, errors.New("dial tcp: refused")),
	}
	svc := NewSearchService(stub, f.manager, f.log)

	res, err := svc.Search(context.Background(), uuid.New(), &dto.SearchRequest{Query: "Delta"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestSearchPropagatesOtherErrors(t *testing.T) {
	f := newServiceFixture(t)
	boom := errors.New("owner id is required")
	svc := NewSearchService(&stubSearcher{err: boom}, f.manager, f.log)

	_, err := svc.Search(context.Background(), uuid.New(), &dto.SearchRequest{Query: "Delta"})
	assert.ErrorIs(t, err, boom)
}

func TestStatsOnEmptyIndex(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewSearchService(&stubSearcher{}, f.manager, f.log)

	stats := svc.Stats(context.Background())
	assert.Equal(t, "documents", stats.IndexName)
	assert.Equal(t, "memory", stats.Backend)
	assert.Zero(t, stats.TotalDocuments)
	assert.Nil(t, stats.IndexSize)
	assert.Equal(t, testDim, stats.Dimension)
}
