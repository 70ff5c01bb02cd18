package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("AI_REQUEST_TIMEOUT", "")
	t.Setenv("OTEL_SAMPLE_RATIO", "")

	cfg := Load()

	assert.Equal(t, 384, cfg.Ai.EmbeddingDim)
	assert.Equal(t, 1000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.Ai.RequestTimeout)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SEARCH_BACKEND", "Memory")
	t.Setenv("ELASTICSEARCH_HOSTS", "http://a:9200, http://b:9200,")
	t.Setenv("INDEX_SHARDS", "3")
	t.Setenv("INDEX_REFRESH", "true")
	t.Setenv("BACKEND_TIMEOUT", "5")
	t.Setenv("AI_REQUEST_TIMEOUT", "1500ms")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Search.Backend)
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.Search.Hosts)
	assert.Equal(t, 3, cfg.Search.Shards)
	assert.True(t, cfg.Search.Refresh)
	assert.Equal(t, 5*time.Second, cfg.Search.BackendTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Ai.RequestTimeout)
}

func validConfig() *Config {
	return &Config{
		Search:    SearchConfig{Backend: "memory"},
		Storage:   StorageConfig{Driver: "disk", DiskRoot: "/tmp/docs"},
		Ai:        AIConfig{EmbeddingDim: 384, RerankProvider: "none"},
		Ingestion: IngestionConfig{ChunkSize: 1000, ChunkOverlap: 200, Workers: 4},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "sample ratio above one",
			mutate:  func(c *Config) { c.Tracing.SampleRatio = 1.5 },
			wantErr: "OTEL_SAMPLE_RATIO",
		},
		{
			name:    "non-positive dimension",
			mutate:  func(c *Config) { c.Ai.EmbeddingDim = 0 },
			wantErr: "EMBEDDING_DIM",
		},
		{
			name:    "overlap not below chunk size",
			mutate:  func(c *Config) { c.Ingestion.ChunkOverlap = 1000 },
			wantErr: "CHUNK_OVERLAP",
		},
		{
			name:    "elastic without location",
			mutate:  func(c *Config) { c.Search.Backend = "elastic" },
			wantErr: "ELASTICSEARCH_ENDPOINT",
		},
		{
			name: "elastic endpoint without api key",
			mutate: func(c *Config) {
				c.Search.Backend = "elastic"
				c.Search.Endpoint = "https://es.example.com"
			},
			wantErr: "ELASTICSEARCH_API_KEY",
		},
		{
			name: "elastic hosts need no api key",
			mutate: func(c *Config) {
				c.Search.Backend = "elastic"
				c.Search.Hosts = []string{"http://localhost:9200"}
			},
		},
		{
			name:    "pgvector without database",
			mutate:  func(c *Config) { c.Search.Backend = "pgvector" },
			wantErr: "DB_CONNECTION_STRING",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Search.Backend = "solr" },
			wantErr: "SEARCH_BACKEND",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Driver = "s3" },
			wantErr: "S3_BUCKET",
		},
		{
			name:    "jina reranker without key",
			mutate:  func(c *Config) { c.Ai.RerankProvider = "jina" },
			wantErr: "JINA_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
