package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultRerankURL = "https://api.jina.ai/v1/rerank"

// JinaReranker scores query/document pairs jointly with a hosted cross-encoder.
type JinaReranker struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n,omitempty"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Detail string `json:"detail,omitempty"`
}

type Option func(*JinaReranker)

func WithBaseURL(url string) Option {
	return func(r *JinaReranker) { r.baseURL = url }
}

func WithModel(model string) Option {
	return func(r *JinaReranker) { r.model = model }
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *JinaReranker) {
		if timeout > 0 {
			r.client.Timeout = timeout
		}
	}
}

func NewJinaReranker(apiKey string, opts ...Option) (*JinaReranker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("jina api key is required")
	}
	r := &JinaReranker{
		apiKey:  apiKey,
		baseURL: defaultRerankURL,
		model:   "jina-reranker-v2-base-multilingual",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *JinaReranker) Name() string    { return "jina:" + r.model }
func (r *JinaReranker) Available() bool { return true }

func (r *JinaReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Scored, error) {
	// Nothing to reorder
	if len(documents) <= 1 {
		return identity(len(documents), topK), nil
	}

	jsonData, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina rerank error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var out rerankResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Results) != len(documents) {
		return nil, fmt.Errorf("jina rerank returned %d scores for %d documents", len(out.Results), len(documents))
	}

	seen := make([]bool, len(documents))
	scored := make([]Scored, len(documents))
	for _, res := range out.Results {
		if res.Index < 0 || res.Index >= len(documents) || seen[res.Index] {
			return nil, fmt.Errorf("jina rerank returned invalid index %d", res.Index)
		}
		seen[res.Index] = true
		// seed in input order so the stable sort breaks ties by index
		scored[res.Index] = Scored{Index: res.Index, Score: res.RelevanceScore}
	}

	return truncate(order(scored), topK), nil
}
