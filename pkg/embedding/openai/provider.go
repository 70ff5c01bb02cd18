package openai

import (
	"context"
	"fmt"

	"ai-docsearch-be/pkg/embedding"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// Provider talks to any OpenAI-compatible embeddings endpoint through langchaingo.
type Provider struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
}

func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Dimension <= 0 {
		return nil, embedding.ErrInvalidDimension
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	// Local OpenAI-compatible servers usually ignore the token but the client requires one
	if cfg.APIKey == "" {
		cfg.APIKey = "none"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	opts := []lcopenai.Option{
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}

	client, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Provider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

func (p *Provider) Name() string         { return "openai:" + p.model }
func (p *Provider) Tier() embedding.Tier { return embedding.TierSemantic }
func (p *Provider) Dimension() int       { return p.dimension }

func (p *Provider) Generate(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *Provider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", embedding.ErrEmptyResponse, len(vectors), len(texts))
	}

	for _, vec := range vectors {
		if len(vec) != p.dimension {
			return nil, fmt.Errorf("%w: provider %s returned %d values, index expects %d",
				embedding.ErrDimensionMismatch, p.Name(), len(vec), p.dimension)
		}
	}
	return vectors, nil
}
