package contract

import (
	"context"
	"errors"

	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/internal/repository/specification"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateChunk = errors.New("chunk index already exists for document")
)

type DocumentRepository interface {
	Create(ctx context.Context, document *entity.Document) error
	// UpdateStatus moves a document forward; illegal moves fail with entity.ErrInvalidStatusTransition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DocumentStatus, processingError *string) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type ChunkRepository interface {
	Create(ctx context.Context, chunk *entity.Chunk) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
