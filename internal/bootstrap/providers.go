package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"ai-docsearch-be/internal/config"
	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/internal/repository/memory"
	"ai-docsearch-be/internal/repository/unitofwork"
	"ai-docsearch-be/pkg/blob"
	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/embedding/factory"
	"ai-docsearch-be/pkg/rerank"
	"ai-docsearch-be/pkg/searchindex"
	"ai-docsearch-be/pkg/searchindex/elastic"
	searchmemory "ai-docsearch-be/pkg/searchindex/memory"
	"ai-docsearch-be/pkg/searchindex/pgindex"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func newEmbedder(cfg *config.Config, log logger.ILogger) (embedding.EmbeddingProvider, func(), error) {
	provider, err := factory.NewEmbeddingProvider(factory.Config{
		Provider:      cfg.Ai.EmbeddingProvider,
		Dimension:     cfg.Ai.EmbeddingDim,
		Timeout:       cfg.Ai.RequestTimeout,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OllamaModel:   cfg.Ai.OllamaModel,
		JinaAPIKey:    cfg.Ai.JinaAPIKey,
		JinaModel:     cfg.Ai.JinaModel,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.Ai.OpenAIAPIKey,
		OpenAIModel:   cfg.Ai.OpenAIModel,
	})
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Ai.EmbeddingCache {
	case "redis":
		rdb, err := newRedisClient(cfg.App.RedisURL)
		if err != nil {
			log.Warn("BOOTSTRAP", "Redis unavailable, using in-memory embedding cache", map[string]interface{}{
				"error": err.Error(),
			})
			return embedding.NewCachedProvider(provider, embedding.NewMemoryVectorCache(cfg.Ai.EmbeddingCacheTTL), log), nil, nil
		}
		cache := embedding.NewRedisVectorCache(rdb, cfg.Ai.EmbeddingCacheTTL)
		return embedding.NewCachedProvider(provider, cache, log), func() { rdb.Close() }, nil
	case "memory":
		return embedding.NewCachedProvider(provider, embedding.NewMemoryVectorCache(cfg.Ai.EmbeddingCacheTTL), log), nil, nil
	default:
		return provider, nil, nil
	}
}

func newReranker(cfg *config.Config) (rerank.Reranker, error) {
	switch cfg.Ai.RerankProvider {
	case "jina":
		opts := []rerank.Option{rerank.WithTimeout(cfg.Ai.RequestTimeout)}
		if cfg.Ai.RerankModel != "" {
			opts = append(opts, rerank.WithModel(cfg.Ai.RerankModel))
		}
		return rerank.NewJinaReranker(cfg.Ai.JinaAPIKey, opts...)
	default:
		return rerank.NewPassthrough(), nil
	}
}

func newSearchBackend(cfg *config.Config, db *gorm.DB) (searchindex.Backend, error) {
	switch cfg.Search.Backend {
	case "elastic":
		refresh := ""
		if cfg.Search.Refresh {
			refresh = "wait_for"
		}
		return elastic.NewBackend(elastic.Config{
			Endpoint: cfg.Search.Endpoint,
			CloudID:  cfg.Search.CloudID,
			APIKey:   cfg.Search.APIKey,
			Hosts:    cfg.Search.Hosts,
			Refresh:  refresh,
		})
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("%w: pgvector backend needs a database", config.ErrInvalidConfig)
		}
		return pgindex.NewBackend(db), nil
	case "memory":
		return searchmemory.NewBackend(), nil
	default:
		return nil, fmt.Errorf("%w: unknown search backend %q", config.ErrInvalidConfig, cfg.Search.Backend)
	}
}

func newIndexManager(cfg *config.Config, backend searchindex.Backend, log logger.ILogger) (*searchindex.Manager, error) {
	return searchindex.NewManager(backend, searchindex.ManagerConfig{
		Index:      cfg.Search.IndexName,
		Dimension:  cfg.Ai.EmbeddingDim,
		Similarity: searchindex.Similarity(strings.ToLower(cfg.Search.Similarity)),
		Settings: &searchindex.ShardSettings{
			Shards:   cfg.Search.Shards,
			Replicas: cfg.Search.Replicas,
		},
		Timeout: cfg.Search.BackendTimeout,
	}, log)
}

func newBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Storage.Driver {
	case "s3":
		return blob.NewS3Store(blob.S3Config{
			Endpoint:  cfg.Storage.S3Endpoint,
			Region:    cfg.Storage.S3Region,
			Bucket:    cfg.Storage.S3Bucket,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			PathStyle: cfg.Storage.S3PathStyle,
		})
	default:
		return blob.NewDiskStore(cfg.Storage.DiskRoot)
	}
}

// newRepositoryFactory falls back to the in-process store when no database
// is configured.
func newRepositoryFactory(db *gorm.DB) unitofwork.RepositoryFactory {
	if db == nil {
		return memory.NewRepositoryFactory(memory.NewStore())
	}
	return unitofwork.NewRepositoryFactory(db)
}

// checkEmbeddingDimension embeds one short text and compares the vector
// length with the index schema. A provider that cannot be reached is only
// logged; ingestion fails per document until it returns.
func checkEmbeddingDimension(ctx context.Context, embedder embedding.EmbeddingProvider, dimension int, log logger.ILogger) error {
	if embedder.Dimension() != dimension {
		return fmt.Errorf("%w: provider %s is configured for %d, index expects %d",
			embedding.ErrDimensionMismatch, embedder.Name(), embedder.Dimension(), dimension)
	}
	vec, err := embedder.Generate(ctx, "dimension check")
	if err != nil {
		if errors.Is(err, embedding.ErrDimensionMismatch) {
			return fmt.Errorf("check embedding provider: %w", err)
		}
		log.Warn("BOOTSTRAP", "Embedding provider not reachable at startup", map[string]interface{}{
			"provider": embedder.Name(),
			"error":    err.Error(),
		})
		return nil
	}
	if len(vec) != dimension {
		return fmt.Errorf("%w: provider %s returned %d values, index expects %d",
			embedding.ErrDimensionMismatch, embedder.Name(), len(vec), dimension)
	}
	return nil
}

// unreachable reports connectivity failures and timeouts, which heal on
// their own, as opposed to answers the backend gave.
func unreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *elastic.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 500 {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
