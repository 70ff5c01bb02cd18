package mapper

import (
	"testing"
	"time"

	"ai-docsearch-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentMapperExtractionInfo(t *testing.T) {
	m := NewDocumentMapper()
	failure := "embedding backend down"
	doc := &entity.Document{
		Id:               uuid.New(),
		UserId:           uuid.New(),
		OriginalFilename: "notes.md",
		Status:           entity.DocumentStatusFailed,
		ProcessingError:  &failure,
		ExtractionInfo:   entity.ExtractionInfo{Extractor: "text", MimeType: "text/markdown", CharCount: 42, PageCount: 1},
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	row := m.ToModel(doc)
	assert.JSONEq(t, `{"extractor":"text","mime_type":"text/markdown","char_count":42,"page_count":1}`, string(row.ExtractionInfo))
	assert.Equal(t, "failed", row.Status)

	back := m.ToEntity(row)
	require.NotNil(t, back)
	assert.Equal(t, doc.ExtractionInfo, back.ExtractionInfo)
	assert.Nil(t, back.UpdatedAt)
	assert.Equal(t, failure, *back.ProcessingError)
}

func TestDocumentMapperNil(t *testing.T) {
	m := NewDocumentMapper()
	assert.Nil(t, m.ToEntity(nil))
	assert.Nil(t, m.ToModel(nil))
	assert.Nil(t, NewChunkMapper().ToEntity(nil))
}
