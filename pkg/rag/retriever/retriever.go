package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/rerank"
	"ai-docsearch-be/pkg/searchindex"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultK = 5

// ErrBackendUnavailable means the search could not run. The empty result that
// accompanies it is not a "no matches" answer.
var ErrBackendUnavailable = errors.New("search backend unavailable")

// Index is the read side of the search index.
type Index interface {
	Search(ctx context.Context, q searchindex.Query) ([]searchindex.Hit, error)
}

type Request struct {
	Query         string
	OwnerID       string
	K             int
	NumCandidates int
	UseHybrid     bool
	UseRerank     bool
}

type Result struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"file_id"`
	Content    string  `json:"content"`
	Page       *int    `json:"page_number"`
	Filename   *string `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"similarity_score"`
	FusedScore float64 `json:"original_similarity"`
	// RerankScore is set only when a reranker reordered the candidates.
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

type Response struct {
	Results  []Result
	Reranked bool
}

type Config struct {
	EmbedTimeout  time.Duration
	RerankTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		EmbedTimeout:  30 * time.Second,
		RerankTimeout: 30 * time.Second,
	}
}

// Retriever composes query embedding, owner-scoped hybrid search and optional
// reranking into one ranked list.
type Retriever struct {
	embedder embedding.EmbeddingProvider
	index    Index
	reranker rerank.Reranker
	cfg      Config
	logger   logger.ILogger
}

func New(embedder embedding.EmbeddingProvider, index Index, reranker rerank.Reranker, cfg Config, log logger.ILogger) *Retriever {
	if reranker == nil {
		reranker = rerank.NewPassthrough()
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultConfig().EmbedTimeout
	}
	if cfg.RerankTimeout <= 0 {
		cfg.RerankTimeout = DefaultConfig().RerankTimeout
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		cfg:      cfg,
		logger:   log,
	}
}

// candidateDepth returns how many hits to fetch and the kNN candidate pool.
// Reranking fetches three times K so the second stage has something to reorder.
func candidateDepth(k, numCandidates int, rerankActive bool) (int, int) {
	depth := k
	if rerankActive {
		depth = 3 * k
		if numCandidates < 2*depth {
			numCandidates = 2 * depth
		}
	}
	if numCandidates < depth {
		numCandidates = depth
	}
	return depth, numCandidates
}

// Search never returns a nil Results slice. Ownership errors are returned
// as-is; every other failure wraps ErrBackendUnavailable.
func (r *Retriever) Search(ctx context.Context, req Request) (Response, error) {
	ctx, span := otel.Tracer("retriever").Start(ctx, "retriever.Search")
	defer span.End()

	empty := Response{Results: []Result{}}
	if req.OwnerID == "" {
		return empty, searchindex.ErrOwnerRequired
	}
	if req.K <= 0 {
		req.K = DefaultK
	}

	rerankActive := req.UseRerank && r.reranker.Available()
	depth, numCandidates := candidateDepth(req.K, req.NumCandidates, rerankActive)
	span.SetAttributes(
		attribute.Int("search.k", req.K),
		attribute.Int("search.num_candidates", numCandidates),
		attribute.Bool("search.hybrid", req.UseHybrid),
		attribute.Bool("search.rerank", rerankActive),
	)

	ectx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	vector, err := r.embedder.Generate(ectx, req.Query)
	cancel()
	if err != nil {
		return r.fail(span, empty, "Query embedding failed", err)
	}

	hits, err := r.index.Search(ctx, searchindex.Query{
		OwnerID:       req.OwnerID,
		Text:          req.Query,
		Vector:        vector,
		K:             depth,
		NumCandidates: numCandidates,
		Hybrid:        req.UseHybrid,
	})
	if err != nil {
		if errors.Is(err, searchindex.ErrOwnerRequired) {
			return empty, err
		}
		return r.fail(span, empty, "Index search failed", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		// the index already filters by owner; this is the last line
		if h.UserID != "" && h.UserID != req.OwnerID {
			continue
		}
		results = append(results, Result{
			ChunkID:    h.ChunkID,
			DocumentID: h.FileID,
			Content:    h.Content,
			Page:       h.PageNumber,
			Filename:   h.Filename,
			ChunkIndex: h.ChunkIndex,
			Score:      h.Score,
			FusedScore: h.Score,
		})
	}
	sortResults(results)

	if rerankActive && len(results) > 1 {
		reranked, err := r.rerank(ctx, req.Query, results, req.K)
		if err == nil {
			span.SetAttributes(attribute.Int("search.results", len(reranked)))
			return Response{Results: reranked, Reranked: true}, nil
		}
		r.logger.Warn("RETRIEVER", "Rerank failed, using fused scores", map[string]interface{}{
			"error":      err.Error(),
			"candidates": len(results),
		})
	}

	if len(results) > req.K {
		results = results[:req.K]
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return Response{Results: results}, nil
}

func (r *Retriever) rerank(ctx context.Context, query string, candidates []Result, k int) ([]Result, error) {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}

	rctx, cancel := context.WithTimeout(ctx, r.cfg.RerankTimeout)
	defer cancel()
	scored, err := r.reranker.Rerank(rctx, query, docs, k)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(scored))
	for _, s := range scored {
		if s.Index < 0 || s.Index >= len(candidates) {
			return nil, fmt.Errorf("reranker returned index %d for %d candidates", s.Index, len(candidates))
		}
		res := candidates[s.Index]
		score := s.Score
		res.RerankScore = &score
		res.Score = score
		out = append(out, res)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (r *Retriever) fail(span trace.Span, empty Response, msg string, err error) (Response, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	r.logger.Error("RETRIEVER", msg, map[string]interface{}{"error": err.Error()})
	return empty, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// sortResults orders by score descending with chunk id as the tie-break.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
