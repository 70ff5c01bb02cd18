package searchindex

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultIndexName = "documents"

	SimilarityCosine Similarity = "cosine"
	SimilarityDot    Similarity = "dot_product"
	SimilarityL2     Similarity = "l2_norm"
)

var (
	// ErrSettingsRejected marks a create failure caused only by shard/replica
	// directives the backend topology does not accept.
	ErrSettingsRejected  = errors.New("index settings rejected by backend")
	ErrIndexNotFound     = errors.New("index not found")
	ErrOwnerRequired     = errors.New("owner id is required")
	ErrEmptyFilter       = errors.New("delete filter must name a file or an owner")
	ErrInvalidDimension  = errors.New("index dimension must be positive")
	ErrDimensionMismatch = errors.New("vector dimension does not match index")
	ErrStatsUnavailable  = errors.New("index size is not reported by this backend")
	ErrMissingChunkID    = errors.New("index entry needs a chunk id")
	// ErrUnauthorized marks a request the backend refused for credentials or
	// permissions. Retrying it cannot succeed.
	ErrUnauthorized = errors.New("search backend rejected credentials")
	// ErrBadRequest marks a malformed request or document.
	ErrBadRequest = errors.New("search backend rejected request")
)

type Similarity string

type ShardSettings struct {
	Shards   int `json:"number_of_shards"`
	Replicas int `json:"number_of_replicas"`
}

type IndexDefinition struct {
	Dimension  int
	Similarity Similarity
	// Settings is nil when the index must be created without topology directives.
	Settings *ShardSettings
}

// Entry is the searchable projection of a stored chunk. ChunkID is the
// primary key, so writing the same chunk twice replaces the first write.
type Entry struct {
	ChunkID    string    `json:"chunk_id"`
	FileID     string    `json:"file_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber *int      `json:"page_number"`
	Filename   *string   `json:"filename"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter selects entries by exact match. Empty fields are ignored.
type Filter struct {
	FileID string
	UserID string
}

func (f Filter) IsEmpty() bool {
	return f.FileID == "" && f.UserID == ""
}

type Query struct {
	OwnerID       string
	Text          string
	Vector        []float32
	K             int
	NumCandidates int
	// Hybrid adds a keyword match on content to the vector search.
	Hybrid bool
}

// Hit carries an entry without its embedding.
type Hit struct {
	Entry
	Score float64
}

type Stats struct {
	DocumentCount int64  `json:"total_documents"`
	SizeInBytes   *int64 `json:"index_size,omitempty"`
	Index         string `json:"index_name"`
}

// Backend is a search index store. Implementations translate ErrSettingsRejected
// from whatever their topology reports and must never return hits whose
// user_id differs from Query.OwnerID.
type Backend interface {
	Name() string
	Exists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, def IndexDefinition) error
	Upsert(ctx context.Context, index string, entry Entry) error
	DeleteByQuery(ctx context.Context, index string, filter Filter) (int64, error)
	Search(ctx context.Context, index string, q Query) ([]Hit, error)
	Count(ctx context.Context, index string, filter Filter) (int64, error)
	SizeInBytes(ctx context.Context, index string) (int64, error)
}
