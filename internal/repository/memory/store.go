// Package memory is an in-process content store backed by go-cache. It keeps
// the same contracts as the gorm repositories, including the cascade from
// documents to chunks and the unique chunk position per document.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"ai-docsearch-be/internal/repository/contract"
	"ai-docsearch-be/internal/repository/specification"
	"ai-docsearch-be/internal/repository/unitofwork"

	"github.com/patrickmn/go-cache"
)

var ErrUnsupportedSpecification = errors.New("specification not supported by memory store")

type Store struct {
	mu        sync.RWMutex
	documents *cache.Cache
	chunks    *cache.Cache
}

func NewStore() *Store {
	return &Store{
		documents: cache.New(cache.NoExpiration, 0),
		chunks:    cache.New(cache.NoExpiration, 0),
	}
}

func (s *Store) DocumentRepository() contract.DocumentRepository {
	return &DocumentRepository{store: s}
}

func (s *Store) ChunkRepository() contract.ChunkRepository {
	return &ChunkRepository{store: s}
}

// journal records the prior value of every key a transaction touches.
type journal struct {
	mu      sync.Mutex
	changes []change
}

type change struct {
	table   *cache.Cache
	key     string
	prev    interface{}
	existed bool
}

// remember must be called with the store lock held, before the write.
func (j *journal) remember(table *cache.Cache, key string) {
	if j == nil {
		return
	}
	prev, existed := table.Get(key)
	j.mu.Lock()
	j.changes = append(j.changes, change{table: table, key: key, prev: prev, existed: existed})
	j.mu.Unlock()
}

func (s *Store) undo(j *journal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.changes) - 1; i >= 0; i-- {
		c := j.changes[i]
		if c.existed {
			c.table.Set(c.key, c.prev, cache.NoExpiration)
		} else {
			c.table.Delete(c.key)
		}
	}
	j.changes = nil
}

// UnitOfWork rolls back only the writes made through its own repositories.
// Reads are not isolated: uncommitted writes are visible to other readers.
type UnitOfWork struct {
	store   *Store
	journal *journal
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.journal != nil {
		return fmt.Errorf("transaction already started")
	}
	u.journal = &journal{}
	return nil
}

func (u *UnitOfWork) Commit() error {
	if u.journal == nil {
		return fmt.Errorf("no transaction to commit")
	}
	u.journal = nil
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if u.journal == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	u.store.undo(u.journal)
	u.journal = nil
	return nil
}

func (u *UnitOfWork) DocumentRepository() contract.DocumentRepository {
	return &DocumentRepository{store: u.store, journal: u.journal}
}

func (u *UnitOfWork) ChunkRepository() contract.ChunkRepository {
	return &ChunkRepository{store: u.store, journal: u.journal}
}

type RepositoryFactory struct {
	store *Store
}

func NewRepositoryFactory(store *Store) unitofwork.RepositoryFactory {
	return &RepositoryFactory{store: store}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &UnitOfWork{store: f.store}
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func paginate[T any](items []T, p *specification.Pagination) []T {
	if p == nil {
		return items
	}
	if p.Offset >= len(items) {
		return items[:0]
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
