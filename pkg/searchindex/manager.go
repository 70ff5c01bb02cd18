package searchindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-docsearch-be/internal/pkg/logger"
)

type ManagerConfig struct {
	Index      string
	Dimension  int
	Similarity Similarity
	// Settings are tried first on create and dropped if the backend rejects them.
	Settings *ShardSettings
	Timeout  time.Duration
}

// Manager owns one index on a backend: lifecycle, write validation and stats.
type Manager struct {
	backend Backend
	cfg     ManagerConfig
	logger  logger.ILogger
}

func NewManager(backend Backend, cfg ManagerConfig, log logger.ILogger) (*Manager, error) {
	if cfg.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	if cfg.Similarity == "" {
		cfg.Similarity = SimilarityCosine
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Manager{backend: backend, cfg: cfg, logger: log}, nil
}

func (m *Manager) Index() string    { return m.cfg.Index }
func (m *Manager) Dimension() int   { return m.cfg.Dimension }
func (m *Manager) Backend() Backend { return m.backend }

// Ensure creates the managed index if it does not exist yet.
func (m *Manager) Ensure(ctx context.Context) error {
	return m.EnsureIndex(ctx, m.cfg.Index, m.cfg.Dimension, m.cfg.Similarity)
}

// EnsureIndex is a no-op when the index exists; existing schemas are never
// compared or migrated. A create rejected only for its shard settings is
// retried once without them.
func (m *Manager) EnsureIndex(ctx context.Context, name string, dimension int, similarity Similarity) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	exists, err := m.backend.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		m.logger.Info("SEARCH_INDEX", "Index already exists", map[string]interface{}{"index": name})
		return nil
	}

	def := IndexDefinition{Dimension: dimension, Similarity: similarity, Settings: m.cfg.Settings}
	err = m.backend.CreateIndex(ctx, name, def)
	if err != nil && def.Settings != nil && errors.Is(err, ErrSettingsRejected) {
		m.logger.Info("SEARCH_INDEX", "Backend rejected shard settings, creating without them", map[string]interface{}{
			"index":   name,
			"backend": m.backend.Name(),
			"reason":  err.Error(),
		})
		def.Settings = nil
		err = m.backend.CreateIndex(ctx, name, def)
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	m.logger.Info("SEARCH_INDEX", "Index created", map[string]interface{}{
		"index":       name,
		"backend":     m.backend.Name(),
		"dimension":   dimension,
		"with_shards": def.Settings != nil,
	})
	return nil
}

// ValidateDimension rejects vectors that do not fit the index schema.
func (m *Manager) ValidateDimension(vec []float32) error {
	if len(vec) != m.cfg.Dimension {
		return fmt.Errorf("%w: got %d, index %s expects %d", ErrDimensionMismatch, len(vec), m.cfg.Index, m.cfg.Dimension)
	}
	return nil
}

func (m *Manager) Upsert(ctx context.Context, entry Entry) error {
	if entry.ChunkID == "" {
		return ErrMissingChunkID
	}
	if entry.UserID == "" {
		return ErrOwnerRequired
	}
	if err := m.ValidateDimension(entry.Embedding); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	return m.backend.Upsert(ctx, m.cfg.Index, entry)
}

func (m *Manager) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	return m.deleteByQuery(ctx, Filter{FileID: fileID})
}

func (m *Manager) DeleteByOwner(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrOwnerRequired
	}
	return m.deleteByQuery(ctx, Filter{UserID: userID})
}

func (m *Manager) deleteByQuery(ctx context.Context, filter Filter) (int64, error) {
	if filter.IsEmpty() {
		return 0, ErrEmptyFilter
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	deleted, err := m.backend.DeleteByQuery(ctx, m.cfg.Index, filter)
	if err != nil {
		return 0, err
	}
	m.logger.Info("SEARCH_INDEX", "Deleted index entries", map[string]interface{}{
		"file_id": filter.FileID,
		"user_id": filter.UserID,
		"deleted": deleted,
	})
	return deleted, nil
}

// Search runs an owner-scoped query. The owner is checked before the backend
// is touched and hits are filtered again on the way out.
func (m *Manager) Search(ctx context.Context, q Query) ([]Hit, error) {
	if q.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if err := m.ValidateDimension(q.Vector); err != nil {
		return nil, err
	}
	if q.K <= 0 {
		q.K = 5
	}
	if q.NumCandidates < q.K {
		q.NumCandidates = q.K
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	hits, err := m.backend.Search(ctx, m.cfg.Index, q)
	if err != nil {
		return nil, err
	}
	hits = OwnedOnly(hits, q.OwnerID)
	SortHits(hits)
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func (m *Manager) Count(ctx context.Context, filter Filter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	return m.backend.Count(ctx, m.cfg.Index, filter)
}

// GetStats never fails: count falls back to 0 and size to nil (unavailable).
func (m *Manager) GetStats(ctx context.Context) Stats {
	stats := Stats{Index: m.cfg.Index}

	count, err := m.Count(ctx, Filter{})
	if err != nil {
		m.logger.Error("SEARCH_INDEX", "Failed to count index entries", map[string]interface{}{
			"index": m.cfg.Index,
			"error": err.Error(),
		})
	} else {
		stats.DocumentCount = count
	}

	sctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	size, err := m.backend.SizeInBytes(sctx, m.cfg.Index)
	switch {
	case errors.Is(err, ErrStatsUnavailable):
		m.logger.Info("SEARCH_INDEX", "Index size not available on this backend", map[string]interface{}{"backend": m.backend.Name()})
	case err != nil:
		m.logger.Warn("SEARCH_INDEX", "Could not get index size", map[string]interface{}{"error": err.Error()})
	default:
		stats.SizeInBytes = &size
	}
	return stats
}
