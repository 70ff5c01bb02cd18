package pgindex

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"ai-docsearch-be/pkg/searchindex"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const undefinedTable = "42P01"

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// row is one index entry. content_tsv is a generated column and stays out of
// the struct so inserts never write it.
type row struct {
	ChunkID    string          `gorm:"column:chunk_id;primaryKey"`
	FileID     string          `gorm:"column:file_id"`
	UserID     string          `gorm:"column:user_id"`
	Content    string          `gorm:"column:content"`
	Embedding  pgvector.Vector `gorm:"column:embedding"`
	ChunkIndex int             `gorm:"column:chunk_index"`
	PageNumber *int            `gorm:"column:page_number"`
	Filename   *string         `gorm:"column:filename"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
}

type scoredRow struct {
	row
	VectorScore  float64
	KeywordScore float64
}

// Backend stores each index as a Postgres table with a vector column. It has
// no notion of shards, so any Settings are rejected.
type Backend struct {
	db *gorm.DB
}

func NewBackend(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

func (b *Backend) Name() string { return "pgvector" }

func table(index string) (string, error) {
	if !identifier.MatchString(index) {
		return "", fmt.Errorf("invalid index name %q", index)
	}
	return "search_" + index, nil
}

func translate(err error, index string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", searchindex.ErrIndexNotFound, index)
	}
	return err
}

func (b *Backend) Exists(ctx context.Context, index string) (bool, error) {
	name, err := table(index)
	if err != nil {
		return false, err
	}
	var exists bool
	err = b.db.WithContext(ctx).Raw("SELECT to_regclass(?) IS NOT NULL", name).Scan(&exists).Error
	return exists, err
}

func opsClass(sim searchindex.Similarity) string {
	switch sim {
	case searchindex.SimilarityDot:
		return "vector_ip_ops"
	case searchindex.SimilarityL2:
		return "vector_l2_ops"
	default:
		return "vector_cosine_ops"
	}
}

func (b *Backend) CreateIndex(ctx context.Context, index string, def searchindex.IndexDefinition) error {
	if def.Settings != nil {
		return fmt.Errorf("%w: pgvector has no shard or replica settings", searchindex.ErrSettingsRejected)
	}
	if def.Dimension <= 0 {
		return searchindex.ErrInvalidDimension
	}
	name, err := table(index)
	if err != nil {
		return err
	}

	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id text PRIMARY KEY,
			file_id text NOT NULL,
			user_id text NOT NULL,
			content text NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			chunk_index integer NOT NULL DEFAULT 0,
			page_number integer,
			filename text,
			created_at timestamptz NOT NULL DEFAULT now(),
			content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`, name, def.Dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_user_idx ON %s (user_id)", name, name),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_file_idx ON %s (file_id)", name, name),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_tsv_idx ON %s USING gin (content_tsv)", name, name),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding %s)", name, name, opsClass(def.Similarity)),
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range statements {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) Upsert(ctx context.Context, index string, entry searchindex.Entry) error {
	name, err := table(index)
	if err != nil {
		return err
	}
	r := row{
		ChunkID:    entry.ChunkID,
		FileID:     entry.FileID,
		UserID:     entry.UserID,
		Content:    entry.Content,
		Embedding:  pgvector.NewVector(entry.Embedding),
		ChunkIndex: entry.ChunkIndex,
		PageNumber: entry.PageNumber,
		Filename:   entry.Filename,
		CreatedAt:  entry.CreatedAt,
	}
	err = b.db.WithContext(ctx).Table(name).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "chunk_id"}}, UpdateAll: true}).
		Create(&r).Error
	return translate(err, index)
}

func where(db *gorm.DB, f searchindex.Filter) *gorm.DB {
	if f.FileID != "" {
		db = db.Where("file_id = ?", f.FileID)
	}
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	return db
}

func (b *Backend) DeleteByQuery(ctx context.Context, index string, filter searchindex.Filter) (int64, error) {
	if filter.IsEmpty() {
		return 0, searchindex.ErrEmptyFilter
	}
	name, err := table(index)
	if err != nil {
		return 0, err
	}
	res := where(b.db.WithContext(ctx).Table(name), filter).Delete(&row{})
	if res.Error != nil {
		return 0, translate(res.Error, index)
	}
	return res.RowsAffected, nil
}

// Search takes NumCandidates nearest neighbours of the owner and, in hybrid
// mode, fuses their cosine score with ts_rank_cd normalized over the candidates.
func (b *Backend) Search(ctx context.Context, index string, q searchindex.Query) ([]searchindex.Hit, error) {
	if q.OwnerID == "" {
		return nil, searchindex.ErrOwnerRequired
	}
	name, err := table(index)
	if err != nil {
		return nil, err
	}
	limit := q.NumCandidates
	if limit < q.K {
		limit = q.K
	}

	vec := pgvector.NewVector(q.Vector)
	var rows []scoredRow
	err = b.db.WithContext(ctx).
		Table(name).
		Select("chunk_id, file_id, user_id, content, chunk_index, page_number, filename, created_at, "+
			"(2 - (embedding <=> ?)) / 2 AS vector_score, "+
			"ts_rank_cd(content_tsv, plainto_tsquery('english', ?)) AS keyword_score", vec, q.Text).
		Where("user_id = ?", q.OwnerID).
		Order(gorm.Expr("embedding <=> ?", vec)).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, index)
	}

	var maxKeyword float64
	for _, r := range rows {
		if r.KeywordScore > maxKeyword {
			maxKeyword = r.KeywordScore
		}
	}

	hits := make([]searchindex.Hit, 0, len(rows))
	for _, r := range rows {
		score := r.VectorScore
		if q.Hybrid && q.Text != "" {
			var kw float64
			if maxKeyword > 0 {
				kw = r.KeywordScore / maxKeyword
			}
			score = searchindex.Fuse(r.VectorScore, kw)
		}
		hits = append(hits, searchindex.Hit{
			Entry: searchindex.Entry{
				ChunkID:    r.ChunkID,
				FileID:     r.FileID,
				UserID:     r.UserID,
				Content:    r.Content,
				ChunkIndex: r.ChunkIndex,
				PageNumber: r.PageNumber,
				Filename:   r.Filename,
				CreatedAt:  r.CreatedAt,
			},
			Score: score,
		})
	}
	hits = searchindex.OwnedOnly(hits, q.OwnerID)
	searchindex.SortHits(hits)
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func (b *Backend) Count(ctx context.Context, index string, filter searchindex.Filter) (int64, error) {
	name, err := table(index)
	if err != nil {
		return 0, err
	}
	var n int64
	err = where(b.db.WithContext(ctx).Table(name), filter).Count(&n).Error
	return n, translate(err, index)
}

func (b *Backend) SizeInBytes(ctx context.Context, index string) (int64, error) {
	name, err := table(index)
	if err != nil {
		return 0, err
	}
	var size int64
	err = b.db.WithContext(ctx).Raw("SELECT pg_total_relation_size(?::regclass)", name).Scan(&size).Error
	return size, translate(err, index)
}
