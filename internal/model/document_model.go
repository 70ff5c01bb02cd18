package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Document struct {
	Id               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId           uuid.UUID       `gorm:"type:uuid;not null;index"`
	OriginalFilename string          `gorm:"type:varchar(512);not null"`
	ContentType      string          `gorm:"type:varchar(255)"`
	FilePath         string          `gorm:"type:text;not null"`
	FileSize         int64           `gorm:"not null;default:0"`
	Status           string          `gorm:"type:varchar(20);not null;default:'uploaded';index"`
	ProcessingError  *string         `gorm:"type:text"`
	ExtractionInfo   datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime"`
	Chunks           []DocumentChunk `gorm:"foreignKey:DocumentId;constraint:OnDelete:CASCADE"`
}

func (Document) TableName() string {
	return "documents"
}

type DocumentChunk struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_document_chunks_position"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_document_chunks_position"`
	Content    string    `gorm:"type:text;not null"`
	PageNumber *int
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
