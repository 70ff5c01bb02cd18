package mapper

import (
	"encoding/json"
	"time"

	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/internal/model"

	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var info entity.ExtractionInfo
	if len(d.ExtractionInfo) > 0 {
		// malformed info is treated as absent
		_ = json.Unmarshal(d.ExtractionInfo, &info)
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	return &entity.Document{
		Id:               d.Id,
		UserId:           d.UserId,
		OriginalFilename: d.OriginalFilename,
		ContentType:      d.ContentType,
		FilePath:         d.FilePath,
		FileSize:         d.FileSize,
		Status:           entity.DocumentStatus(d.Status),
		ProcessingError:  d.ProcessingError,
		ExtractionInfo:   info,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	info, err := json.Marshal(d.ExtractionInfo)
	if err != nil {
		info = []byte("{}")
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = *d.UpdatedAt
	}

	return &model.Document{
		Id:               d.Id,
		UserId:           d.UserId,
		OriginalFilename: d.OriginalFilename,
		ContentType:      d.ContentType,
		FilePath:         d.FilePath,
		FileSize:         d.FileSize,
		Status:           string(d.Status),
		ProcessingError:  d.ProcessingError,
		ExtractionInfo:   datatypes.JSON(info),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *DocumentMapper) ToEntities(documents []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(documents))
	for i, d := range documents {
		entities[i] = m.ToEntity(d)
	}
	return entities
}

type ChunkMapper struct{}

func NewChunkMapper() *ChunkMapper {
	return &ChunkMapper{}
}

func (m *ChunkMapper) ToEntity(c *model.DocumentChunk) *entity.Chunk {
	if c == nil {
		return nil
	}
	return &entity.Chunk{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		PageNumber: c.PageNumber,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *ChunkMapper) ToModel(c *entity.Chunk) *model.DocumentChunk {
	if c == nil {
		return nil
	}
	return &model.DocumentChunk{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		PageNumber: c.PageNumber,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *ChunkMapper) ToEntities(chunks []*model.DocumentChunk) []*entity.Chunk {
	entities := make([]*entity.Chunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}
