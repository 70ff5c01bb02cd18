package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Search    SearchConfig
	Storage   StorageConfig
	Ai        AIConfig
	Ingestion IngestionConfig
	Tracing   TracingConfig
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
	Verbose    bool
}

type SearchConfig struct {
	Backend        string // "elastic", "pgvector" or "memory"
	Endpoint       string
	CloudID        string
	APIKey         string
	Hosts          []string
	IndexName      string
	Similarity     string
	Shards         int
	Replicas       int
	Refresh        bool
	BackendTimeout time.Duration
}

type StorageConfig struct {
	Driver      string // "disk" or "s3"
	DiskRoot    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
}

type AIConfig struct {
	EmbeddingProvider string // "ollama", "jina", "openai" or "fallback"
	EmbeddingDim      int
	RequestTimeout    time.Duration
	EmbeddingCache    string // "redis", "memory" or "none"
	EmbeddingCacheTTL time.Duration
	OllamaBaseURL     string
	OllamaModel       string
	JinaAPIKey        string
	JinaModel         string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	RerankProvider    string // "jina" or "none"
	RerankModel       string
}

type IngestionConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	Workers           int
	IndexWriteRetries int
	RetryBaseDelay    time.Duration
	ReindexTopic      string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Verbose:    getEnvAsBool("DB_VERBOSE", false),
		},
		Search: SearchConfig{
			Backend:        strings.ToLower(getEnv("SEARCH_BACKEND", "elastic")),
			Endpoint:       getEnv("ELASTICSEARCH_ENDPOINT", ""),
			CloudID:        getEnv("ELASTICSEARCH_CLOUD_ID", ""),
			APIKey:         getEnv("ELASTICSEARCH_API_KEY", ""),
			Hosts:          getEnvAsList("ELASTICSEARCH_HOSTS"),
			IndexName:      getEnv("INDEX_NAME", "documents"),
			Similarity:     getEnv("INDEX_SIMILARITY", "cosine"),
			Shards:         getEnvAsInt("INDEX_SHARDS", 1),
			Replicas:       getEnvAsInt("INDEX_REPLICAS", 1),
			Refresh:        getEnvAsBool("INDEX_REFRESH", false),
			BackendTimeout: getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("STORAGE_DRIVER", "disk")),
			DiskRoot:    getEnv("STORAGE_DISK_ROOT", "./data"),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3Bucket:    getEnv("S3_BUCKET", ""),
			S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("S3_SECRET_KEY", ""),
			S3PathStyle: getEnvAsBool("S3_PATH_STYLE", true),
		},
		Ai: AIConfig{
			EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "ollama")),
			EmbeddingDim:      getEnvAsInt("EMBEDDING_DIM", 384),
			RequestTimeout:    getEnvAsDuration("AI_REQUEST_TIMEOUT", 30*time.Second),
			EmbeddingCache:    strings.ToLower(getEnv("EMBEDDING_CACHE", "memory")),
			EmbeddingCacheTTL: getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "all-minilm"),
			JinaAPIKey:        getEnv("JINA_API_KEY", ""),
			JinaModel:         getEnv("JINA_EMBEDDING_MODEL", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_EMBEDDING_MODEL", ""),
			RerankProvider:    strings.ToLower(getEnv("RERANK_PROVIDER", "none")),
			RerankModel:       getEnv("JINA_RERANK_MODEL", ""),
		},
		Ingestion: IngestionConfig{
			ChunkSize:         getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 200),
			Workers:           getEnvAsInt("INGEST_WORKERS", 4),
			IndexWriteRetries: getEnvAsInt("INDEX_WRITE_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("INDEX_RETRY_BASE_DELAY", 200*time.Millisecond),
			ReindexTopic:      getEnv("REINDEX_TOPIC_NAME", "REINDEX_DOCUMENT"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-docsearch-backend"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
}

// Validate reports settings the process cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0,1], got %g", c.Tracing.SampleRatio))
	}
	if c.Ai.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.Ai.EmbeddingDim))
	}
	if c.Ingestion.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Ingestion.ChunkSize))
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.Ingestion.ChunkOverlap))
	}
	if c.Ingestion.Workers <= 0 {
		errs = append(errs, fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.Ingestion.Workers))
	}

	switch c.Search.Backend {
	case "elastic":
		if c.Search.Endpoint == "" && c.Search.CloudID == "" && len(c.Search.Hosts) == 0 {
			errs = append(errs, errors.New("elastic backend needs ELASTICSEARCH_ENDPOINT, ELASTICSEARCH_CLOUD_ID or ELASTICSEARCH_HOSTS"))
		}
		if (c.Search.Endpoint != "" || c.Search.CloudID != "") && c.Search.APIKey == "" {
			errs = append(errs, errors.New("ELASTICSEARCH_API_KEY is required with an endpoint or cloud id"))
		}
	case "pgvector":
		if c.Database.Connection == "" {
			errs = append(errs, errors.New("pgvector backend needs DB_CONNECTION_STRING"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown SEARCH_BACKEND %q", c.Search.Backend))
	}

	switch c.Storage.Driver {
	case "disk":
		if c.Storage.DiskRoot == "" {
			errs = append(errs, errors.New("STORAGE_DISK_ROOT is required for disk storage"))
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	if c.Ai.RerankProvider == "jina" && c.Ai.JinaAPIKey == "" {
		errs = append(errs, errors.New("JINA_API_KEY is required for the jina reranker"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
