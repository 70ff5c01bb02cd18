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

type DocumentRepository struct {
	store   *Store
	journal *journal
}

func (r *DocumentRepository) Create(ctx context.Context, document *entity.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if document.Id == uuid.Nil {
		document.Id = uuid.New()
	}
	if document.Status == "" {
		document.Status = entity.DocumentStatusUploaded
	}
	if document.CreatedAt.IsZero() {
		document.CreatedAt = time.Now().UTC()
	}
	r.journal.remember(r.store.documents, document.Id.String())
	if err := r.store.documents.Add(document.Id.String(), *document, cache.NoExpiration); err != nil {
		return fmt.Errorf("document %s already exists", document.Id)
	}
	return nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DocumentStatus, processingError *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	x, found := r.store.documents.Get(id.String())
	if !found {
		return contract.ErrNotFound
	}
	doc := x.(entity.Document)
	if err := entity.CheckTransition(doc.Status, status); err != nil {
		return err
	}

	now := time.Now().UTC()
	doc.Status = status
	doc.ProcessingError = processingError
	doc.UpdatedAt = &now
	r.journal.remember(r.store.documents, id.String())
	r.store.documents.Set(id.String(), doc, cache.NoExpiration)
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, found := r.store.documents.Get(id.String()); !found {
		return contract.ErrNotFound
	}
	r.journal.remember(r.store.documents, id.String())
	r.store.documents.Delete(id.String())

	for key, item := range r.store.chunks.Items() {
		if item.Object.(entity.Chunk).DocumentId == id {
			r.journal.remember(r.store.chunks, key)
			r.store.chunks.Delete(key)
		}
	}
	return nil
}

func (r *DocumentRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	docs, err := r.FindAll(ctx, specs...)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (r *DocumentRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	r.store.mu.RLock()
	items := r.store.documents.Items()
	r.store.mu.RUnlock()

	docs := make([]*entity.Document, 0, len(items))
	for _, item := range items {
		doc := item.Object.(entity.Document)
		docs = append(docs, &doc)
	}
	sortBy(docs, func(a, b *entity.Document) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Id.String() < b.Id.String()
	})

	var page *specification.Pagination
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			docs = filter(docs, func(d *entity.Document) bool { return d.Id == s.ID })
		case specification.ByIDs:
			ids := make(map[uuid.UUID]struct{}, len(s.IDs))
			for _, id := range s.IDs {
				ids[id] = struct{}{}
			}
			docs = filter(docs, func(d *entity.Document) bool { _, ok := ids[d.Id]; return ok })
		case specification.UserOwnedBy:
			docs = filter(docs, func(d *entity.Document) bool { return d.UserId == s.UserID })
		case specification.ByStatus:
			docs = filter(docs, func(d *entity.Document) bool { return string(d.Status) == s.Status })
		case specification.OrderBy:
			if s.Field != "created_at" {
				return nil, fmt.Errorf("%w: order by %s", ErrUnsupportedSpecification, s.Field)
			}
			if s.Desc {
				sortBy(docs, func(a, b *entity.Document) bool { return a.CreatedAt.After(b.CreatedAt) })
			}
		case specification.Pagination:
			p := s
			page = &p
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedSpecification, spec)
		}
	}
	return paginate(docs, page), nil
}

func (r *DocumentRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	docs, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}
