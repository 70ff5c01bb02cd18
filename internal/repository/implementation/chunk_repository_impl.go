package implementation

import (
	"context"
	"fmt"

	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/internal/mapper"
	"ai-docsearch-be/internal/model"
	"ai-docsearch-be/internal/repository/contract"
	"ai-docsearch-be/internal/repository/scope"
	"ai-docsearch-be/internal/repository/specification"
	"ai-docsearch-be/pkg/database"

	"gorm.io/gorm"
)

type ChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChunkMapper
}

func NewChunkRepository(db *gorm.DB) contract.ChunkRepository {
	return &ChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewChunkMapper(),
	}
}

func (r *ChunkRepositoryImpl) Create(ctx context.Context, chunk *entity.Chunk) error {
	m := r.mapper.ToModel(chunk)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: document %s index %d", contract.ErrDuplicateChunk, chunk.DocumentId, chunk.ChunkIndex)
		}
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("document %s: %w", chunk.DocumentId, contract.ErrNotFound)
		}
		return err
	}
	*chunk = *r.mapper.ToEntity(m)
	return nil
}

func (r *ChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error) {
	var models []*model.DocumentChunk
	query := applySpecifications(r.db.WithContext(ctx), specs...).Scopes(scope.OrderByChunkIndex)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.DocumentChunk{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
