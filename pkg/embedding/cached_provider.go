package embedding

import (
	"context"
	"errors"

	"ai-docsearch-be/internal/pkg/logger"
)

// CachedProvider memoizes vectors of an underlying provider. Cache errors are
// logged and bypassed; they never fail an embedding call.
type CachedProvider struct {
	inner  EmbeddingProvider
	cache  VectorCache
	logger logger.ILogger
}

func NewCachedProvider(inner EmbeddingProvider, cache VectorCache, log logger.ILogger) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, logger: log}
}

func (p *CachedProvider) Name() string   { return p.inner.Name() }
func (p *CachedProvider) Tier() Tier     { return p.inner.Tier() }
func (p *CachedProvider) Dimension() int { return p.inner.Dimension() }

func (p *CachedProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(p.inner.Name(), p.inner.Dimension(), text)
	if vec, ok := p.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := p.inner.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, vec)
	return vec, nil
}

func (p *CachedProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		keys[i] = CacheKey(p.inner.Name(), p.inner.Dimension(), text)
		if vec, ok := p.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := p.inner.GenerateBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		i := missIdx[j]
		out[i] = vec
		p.store(ctx, keys[i], vec)
	}
	return out, nil
}

func (p *CachedProvider) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			p.logger.Warn("EMBEDDING", "Vector cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	if len(vec) != p.inner.Dimension() {
		return nil, false
	}
	return vec, true
}

func (p *CachedProvider) store(ctx context.Context, key string, vec []float32) {
	if err := p.cache.Set(ctx, key, vec); err != nil {
		p.logger.Warn("EMBEDDING", "Vector cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
