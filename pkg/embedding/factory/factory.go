package factory

import (
	"fmt"
	"time"

	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/embedding/jina"
	"ai-docsearch-be/pkg/embedding/openai"
)

type Config struct {
	Provider  string
	Dimension int
	Timeout   time.Duration

	OllamaBaseURL string
	OllamaModel   string

	JinaAPIKey string
	JinaModel  string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
}

// NewEmbeddingProvider builds the provider named by cfg.Provider.
func NewEmbeddingProvider(cfg Config) (embedding.EmbeddingProvider, error) {
	var (
		provider embedding.EmbeddingProvider
		err      error
	)

	switch cfg.Provider {
	case "ollama":
		provider, err = embedding.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Dimension, cfg.Timeout)
	case "jina":
		opts := []jina.Option{jina.WithTimeout(cfg.Timeout)}
		if cfg.JinaModel != "" {
			opts = append(opts, jina.WithModel(cfg.JinaModel))
		}
		provider, err = jina.NewJinaProvider(cfg.JinaAPIKey, cfg.Dimension, opts...)
	case "openai":
		provider, err = openai.NewProvider(openai.Config{
			BaseURL:   cfg.OpenAIBaseURL,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			Dimension: cfg.Dimension,
		})
	case "fallback":
		provider, err = embedding.NewFallbackProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("init %s embedding provider: %w", cfg.Provider, err)
	}
	return provider, nil
}
