package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ai-docsearch-be/pkg/searchindex"
)

type index struct {
	def     searchindex.IndexDefinition
	entries map[string]searchindex.Entry
}

// Backend keeps indexes in process memory. It scores with the same fusion
// weights as the remote backends.
type Backend struct {
	mu      sync.RWMutex
	indexes map[string]*index

	// RejectSettings makes CreateIndex behave like a serverless topology.
	RejectSettings bool
	// Unavailable makes every call fail, for degraded-path tests.
	Unavailable error
}

func NewBackend() *Backend {
	return &Backend{indexes: make(map[string]*index)}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Exists(_ context.Context, name string) (bool, error) {
	if b.Unavailable != nil {
		return false, b.Unavailable
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.indexes[name]
	return ok, nil
}

func (b *Backend) CreateIndex(_ context.Context, name string, def searchindex.IndexDefinition) error {
	if b.Unavailable != nil {
		return b.Unavailable
	}
	if def.Settings != nil && b.RejectSettings {
		return fmt.Errorf("%w: illegal_argument_exception: number_of_shards is not available in serverless mode", searchindex.ErrSettingsRejected)
	}
	if def.Dimension <= 0 {
		return searchindex.ErrInvalidDimension
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.indexes[name]; !ok {
		b.indexes[name] = &index{def: def, entries: make(map[string]searchindex.Entry)}
	}
	return nil
}

// Definition reports how an index was created.
func (b *Backend) Definition(name string) (searchindex.IndexDefinition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, ok := b.indexes[name]
	if !ok {
		return searchindex.IndexDefinition{}, false
	}
	return idx.def, true
}

func (b *Backend) lookup(name string) (*index, error) {
	if b.Unavailable != nil {
		return nil, b.Unavailable
	}
	idx, ok := b.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", searchindex.ErrIndexNotFound, name)
	}
	return idx, nil
}

func (b *Backend) Upsert(_ context.Context, name string, entry searchindex.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, err := b.lookup(name)
	if err != nil {
		return err
	}
	if len(entry.Embedding) != idx.def.Dimension {
		return fmt.Errorf("%w: got %d, expected %d", searchindex.ErrDimensionMismatch, len(entry.Embedding), idx.def.Dimension)
	}
	entry.Embedding = append([]float32(nil), entry.Embedding...)
	idx.entries[entry.ChunkID] = entry
	return nil
}

func matches(e searchindex.Entry, f searchindex.Filter) bool {
	if f.FileID != "" && e.FileID != f.FileID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	return true
}

func (b *Backend) DeleteByQuery(_ context.Context, name string, filter searchindex.Filter) (int64, error) {
	if filter.IsEmpty() {
		return 0, searchindex.ErrEmptyFilter
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for id, e := range idx.entries {
		if matches(e, filter) {
			delete(idx.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (b *Backend) Search(ctx context.Context, name string, q searchindex.Query) ([]searchindex.Hit, error) {
	if q.OwnerID == "" {
		return nil, searchindex.ErrOwnerRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, err := b.lookup(name)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		entry  searchindex.Entry
		vector float64
	}
	var pool []candidate
	for _, e := range idx.entries {
		if e.UserID != q.OwnerID {
			continue
		}
		pool = append(pool, candidate{entry: e, vector: searchindex.VectorScore(q.Vector, e.Embedding)})
	}

	// approximate the kNN candidate stage: best vectors first, capped
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].vector != pool[j].vector {
			return pool[i].vector > pool[j].vector
		}
		return pool[i].entry.ChunkID < pool[j].entry.ChunkID
	})
	if q.NumCandidates > 0 && len(pool) > q.NumCandidates {
		pool = pool[:q.NumCandidates]
	}

	hits := make([]searchindex.Hit, 0, len(pool))
	for _, c := range pool {
		score := c.vector
		if q.Hybrid && q.Text != "" {
			score = searchindex.Fuse(c.vector, searchindex.KeywordScore(q.Text, c.entry.Content))
		}
		e := c.entry
		e.Embedding = nil
		hits = append(hits, searchindex.Hit{Entry: e, Score: score})
	}
	searchindex.SortHits(hits)
	if q.K > 0 && len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func (b *Backend) Count(_ context.Context, name string, filter searchindex.Filter) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range idx.entries {
		if matches(e, filter) {
			n++
		}
	}
	return n, nil
}

// SizeInBytes is unavailable: memory footprint is not tracked.
func (b *Backend) SizeInBytes(_ context.Context, _ string) (int64, error) {
	return 0, searchindex.ErrStatsUnavailable
}
