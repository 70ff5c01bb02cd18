package dto

type SearchRequest struct {
	Query         string `query:"q" validate:"required,max=2000"`
	K             int    `query:"k" validate:"omitempty,min=1,max=50"`
	NumCandidates int    `query:"num_candidates" validate:"omitempty,min=1,max=1000"`
	Hybrid        *bool  `query:"hybrid"`
	Rerank        *bool  `query:"rerank"`
}

type SearchResult struct {
	ChunkId            string   `json:"chunk_id"`
	FileId             string   `json:"file_id"`
	Filename           *string  `json:"filename"`
	Content            string   `json:"content"`
	ChunkIndex         int      `json:"chunk_index"`
	PageNumber         *int     `json:"page_number"`
	SimilarityScore    float64  `json:"similarity_score"`
	OriginalSimilarity float64  `json:"original_similarity"`
	RerankScore        *float64 `json:"rerank_score,omitempty"`
}

type SearchResponse struct {
	Query    string         `json:"query"`
	Results  []SearchResult `json:"results"`
	Total    int            `json:"total"`
	Reranked bool           `json:"reranked"`
	// Degraded means the index or embedder was unreachable; Results is empty
	// for that reason, not because nothing matched.
	Degraded bool `json:"degraded"`
}

type IndexStatsResponse struct {
	IndexName      string `json:"index_name"`
	Backend        string `json:"backend"`
	TotalDocuments int64  `json:"total_documents"`
	IndexSize      *int64 `json:"index_size"`
	Dimension      int    `json:"dimension"`
}
