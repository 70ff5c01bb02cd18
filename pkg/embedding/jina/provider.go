package jina

import (
	"ai-docsearch-be/pkg/embedding"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEmbeddingsURL = "https://api.jina.ai/v1/embeddings"

type JinaProvider struct {
	apiKey    string
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type Option func(*JinaProvider)

// WithBaseURL points the provider at a different embeddings endpoint.
func WithBaseURL(url string) Option {
	return func(p *JinaProvider) { p.baseURL = url }
}

func WithModel(model string) Option {
	return func(p *JinaProvider) { p.model = model }
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *JinaProvider) {
		if timeout > 0 {
			p.client.Timeout = timeout
		}
	}
}

func NewJinaProvider(apiKey string, dimension int, opts ...Option) (*JinaProvider, error) {
	if dimension <= 0 {
		return nil, embedding.ErrInvalidDimension
	}
	if apiKey == "" {
		return nil, fmt.Errorf("jina api key is required")
	}
	p := &JinaProvider{
		apiKey:    apiKey,
		baseURL:   defaultEmbeddingsURL,
		model:     "jina-embeddings-v3",
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *JinaProvider) Name() string         { return "jina:" + p.model }
func (p *JinaProvider) Tier() embedding.Tier { return embedding.TierSemantic }
func (p *JinaProvider) Dimension() int       { return p.dimension }

func (p *JinaProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateBatch sends all texts in one request. Jina tags every vector with
// its input index; results are placed by that index, not by response order.
func (p *JinaProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := embeddingRequest{
		Model:      p.model,
		Input:      texts,
		Dimensions: p.dimension,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var jinaResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if jinaResp.Error != nil {
		return nil, fmt.Errorf("jina api returned error: %s", jinaResp.Error.Message)
	}

	if len(jinaResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", embedding.ErrEmptyResponse, len(jinaResp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range jinaResp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("jina api returned invalid index %d", d.Index)
		}
		if len(d.Embedding) != p.dimension {
			return nil, fmt.Errorf("%w: provider %s returned %d values, index expects %d",
				embedding.ErrDimensionMismatch, p.Name(), len(d.Embedding), p.dimension)
		}
		out[d.Index] = d.Embedding
	}

	return out, nil
}
