package service

import (
	"context"
	"errors"

	"ai-docsearch-be/internal/dto"
	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/pkg/rag/retriever"
	"ai-docsearch-be/pkg/searchindex"

	"github.com/google/uuid"
)

const searchModule = "SEARCH"

type Searcher interface {
	Search(ctx context.Context, req retriever.Request) (retriever.Response, error)
}

type ISearchService interface {
	Search(ctx context.Context, userId uuid.UUID, req *dto.SearchRequest) (*dto.SearchResponse, error)
	Stats(ctx context.Context) *dto.IndexStatsResponse
}

type searchService struct {
	retriever Searcher
	manager   *searchindex.Manager
	logger    logger.ILogger
}

func NewSearchService(retriever Searcher, manager *searchindex.Manager, log logger.ILogger) ISearchService {
	return &searchService{
		retriever: retriever,
		manager:   manager,
		logger:    log,
	}
}

// Search runs an owner-scoped query. Hybrid scoring and reranking are on
// unless the request turns them off. An unreachable backend yields an empty,
// degraded response instead of an error.
func (s *searchService) Search(ctx context.Context, userId uuid.UUID, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	useHybrid := req.Hybrid == nil || *req.Hybrid
	useRerank := req.Rerank == nil || *req.Rerank

	res, err := s.retriever.Search(ctx, retriever.Request{
		Query:         req.Query,
		OwnerID:       userId.String(),
		K:             req.K,
		NumCandidates: req.NumCandidates,
		UseHybrid:     useHybrid,
		UseRerank:     useRerank,
	})

	out := &dto.SearchResponse{
		Query:    req.Query,
		Results:  make([]dto.SearchResult, 0, len(res.Results)),
		Reranked: res.Reranked,
	}
	if err != nil {
		if !errors.Is(err, retriever.ErrBackendUnavailable) {
			return nil, err
		}
		s.logger.Warn(searchModule, "Search degraded", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
		out.Degraded = true
		return out, nil
	}

	for _, r := range res.Results {
		out.Results = append(out.Results, dto.SearchResult{
			ChunkId:            r.ChunkID,
			FileId:             r.DocumentID,
			Filename:           r.Filename,
			Content:            r.Content,
			ChunkIndex:         r.ChunkIndex,
			PageNumber:         r.Page,
			SimilarityScore:    r.Score,
			OriginalSimilarity: r.FusedScore,
			RerankScore:        r.RerankScore,
		})
	}
	out.Total = len(out.Results)
	return out, nil
}

func (s *searchService) Stats(ctx context.Context) *dto.IndexStatsResponse {
	stats := s.manager.GetStats(ctx)
	return &dto.IndexStatsResponse{
		IndexName:      stats.Index,
		Backend:        s.manager.Backend().Name(),
		TotalDocuments: stats.DocumentCount,
		IndexSize:      stats.SizeInBytes,
		Dimension:      s.manager.Dimension(),
	}
}
