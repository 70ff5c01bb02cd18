package memory

import (
	"context"
	"fmt"
	"time"

	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/internal/repository/contract"
	"ai-docsearch-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type ChunkRepository struct {
	store   *Store
	journal *journal
}

func (r *ChunkRepository) Create(ctx context.Context, chunk *entity.Chunk) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, found := r.store.documents.Get(chunk.DocumentId.String()); !found {
		return fmt.Errorf("document %s: %w", chunk.DocumentId, contract.ErrNotFound)
	}
	for _, item := range r.store.chunks.Items() {
		existing := item.Object.(entity.Chunk)
		if existing.DocumentId == chunk.DocumentId && existing.ChunkIndex == chunk.ChunkIndex {
			return fmt.Errorf("%w: document %s index %d", contract.ErrDuplicateChunk, chunk.DocumentId, chunk.ChunkIndex)
		}
	}

	if chunk.Id == uuid.Nil {
		chunk.Id = uuid.New()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	r.journal.remember(r.store.chunks, chunk.Id.String())
	r.store.chunks.Set(chunk.Id.String(), *chunk, cache.NoExpiration)
	return nil
}

func (r *ChunkRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error) {
	r.store.mu.RLock()
	items := r.store.chunks.Items()
	r.store.mu.RUnlock()

	chunks := make([]*entity.Chunk, 0, len(items))
	for _, item := range items {
		chunk := item.Object.(entity.Chunk)
		chunks = append(chunks, &chunk)
	}
	sortBy(chunks, func(a, b *entity.Chunk) bool {
		if a.DocumentId != b.DocumentId {
			return a.DocumentId.String() < b.DocumentId.String()
		}
		return a.ChunkIndex < b.ChunkIndex
	})

	var page *specification.Pagination
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			chunks = filter(chunks, func(c *entity.Chunk) bool { return c.Id == s.ID })
		case specification.ByDocumentID:
			chunks = filter(chunks, func(c *entity.Chunk) bool { return c.DocumentId == s.DocumentID })
		case specification.OrderBy:
			if s.Field != "chunk_index" {
				return nil, fmt.Errorf("%w: order by %s", ErrUnsupportedSpecification, s.Field)
			}
			if s.Desc {
				sortBy(chunks, func(a, b *entity.Chunk) bool { return a.ChunkIndex > b.ChunkIndex })
			}
		case specification.Pagination:
			p := s
			page = &p
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedSpecification, spec)
		}
	}
	return paginate(chunks, page), nil
}

func (r *ChunkRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	chunks, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(chunks)), nil
}
