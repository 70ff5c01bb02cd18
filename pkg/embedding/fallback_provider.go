package embedding

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// FallbackProvider derives vectors from hashes of the input text. It is a
// pure function of the text and carries no semantic meaning; it only keeps the
// pipeline running when no embedding model is reachable.
type FallbackProvider struct {
	dimension int
}

func NewFallbackProvider(dimension int) (*FallbackProvider, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	return &FallbackProvider{dimension: dimension}, nil
}

func (p *FallbackProvider) Name() string   { return "fallback-hash" }
func (p *FallbackProvider) Tier() Tier     { return TierFallback }
func (p *FallbackProvider) Dimension() int { return p.dimension }

func (p *FallbackProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := text
	if base == "" {
		base = "empty"
	}
	baseLen := utf8.RuneCountInString(base)

	values := make([]float32, p.dimension)
	for i := range values {
		h, err := componentHash(i)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(h, "%s_%d_%d", base, i, baseLen)
		digest := h.Sum(nil)
		values[i] = float32(digest[i%len(digest)]) / 255.0
	}
	return values, nil
}

func (p *FallbackProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Generate(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// componentHash rotates through four digests so neighbouring components are
// decorrelated.
func componentHash(i int) (hash.Hash, error) {
	switch i % 4 {
	case 0:
		return md5.New(), nil
	case 1:
		return sha1.New(), nil
	case 2:
		return sha256.New(), nil
	default:
		return blake2b.New(8, nil)
	}
}
