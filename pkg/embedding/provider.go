package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Tier tells callers whether vectors carry semantic meaning.
type Tier string

const (
	TierSemantic Tier = "semantic"
	TierFallback Tier = "fallback"
)

// DefaultDimension matches all-MiniLM-L6-v2 style sentence embeddings.
const DefaultDimension = 384

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyResponse     = errors.New("embedding provider returned no vectors")
	ErrInvalidDimension  = errors.New("embedding dimension must be positive")
)

// EmbeddingProvider maps text to fixed-dimension vectors.
// GenerateBatch returns one vector per input in input order, and fails as a
// whole when any single item fails.
type EmbeddingProvider interface {
	Name() string
	Tier() Tier
	Dimension() int
	Generate(ctx context.Context, text string) ([]float32, error)
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
}

func checkDimension(provider string, vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: provider %s returned %d values, index expects %d", ErrDimensionMismatch, provider, len(vec), dim)
	}
	return nil
}
