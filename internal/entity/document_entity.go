package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidStatusTransition = errors.New("invalid document status transition")

// DocumentStatus represents the processing state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// CanTransitionTo only allows forward moves; failed is reachable from processing alone.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case DocumentStatusUploaded:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusProcessed || next == DocumentStatusFailed
	default:
		return false
	}
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusProcessing, DocumentStatusProcessed, DocumentStatusFailed:
		return true
	}
	return false
}

func CheckTransition(from, to DocumentStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}

type ExtractionInfo struct {
	Extractor string `json:"extractor"`
	MimeType  string `json:"mime_type"`
	CharCount int    `json:"char_count"`
	PageCount int    `json:"page_count"`
}

type Document struct {
	Id               uuid.UUID
	UserId           uuid.UUID
	OriginalFilename string
	ContentType      string
	FilePath         string
	FileSize         int64
	Status           DocumentStatus
	ProcessingError  *string
	ExtractionInfo   ExtractionInfo
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

func (d *Document) OwnedBy(userId uuid.UUID) bool {
	return d.UserId == userId
}
