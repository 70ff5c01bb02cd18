package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadDocumentRequest struct {
	Filename    string `validate:"required,max=512"`
	ContentType string
	Data        []byte `validate:"required"`
}

type UploadDocumentResponse struct {
	FileId        uuid.UUID `json:"file_id"`
	Filename      string    `json:"filename"`
	Status        string    `json:"status"`
	ChunksCreated int       `json:"chunks_created"`
	ChunksIndexed int       `json:"chunks_indexed"`
	IndexGaps     int       `json:"index_gaps"`
	FilePath      string    `json:"file_path"`
}

type ExtractionInfoResponse struct {
	Extractor string `json:"extractor"`
	MimeType  string `json:"mime_type"`
	CharCount int    `json:"char_count"`
	PageCount int    `json:"page_count"`
}

type DocumentResponse struct {
	Id              uuid.UUID              `json:"id"`
	Filename        string                 `json:"filename"`
	ContentType     string                 `json:"content_type"`
	FileSize        int64                  `json:"file_size"`
	Status          string                 `json:"status"`
	ProcessingError *string                `json:"processing_error,omitempty"`
	ExtractionInfo  ExtractionInfoResponse `json:"extraction_info"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       *time.Time             `json:"updated_at"`
}

type ListDocumentsRequest struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=200"`
}

type DeleteAllDocumentsResponse struct {
	Documents    int   `json:"documents_deleted"`
	IndexEntries int64 `json:"index_entries_deleted"`
}

// PublishReindexMessage asks the consumer to repair index gaps of one document.
type PublishReindexMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
	Gaps       int       `json:"gaps"`
}

type ReconcileResponse struct {
	DocumentId uuid.UUID `json:"document_id"`
	Chunks     int       `json:"chunks"`
	Indexed    int64     `json:"indexed_before"`
	Repaired   int       `json:"repaired"`
	Failed     int       `json:"failed"`
	InSync     bool      `json:"in_sync"`
	Skipped    bool      `json:"skipped"`
}
