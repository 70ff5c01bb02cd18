package service

import (
	"context"
	"errors"
	"time"

	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/searchindex"
	"ai-docsearch-be/pkg/utils"
)

// DocumentIndex is the write side of the search index used by ingestion,
// deletion and reconciliation. *searchindex.Manager satisfies it.
type DocumentIndex interface {
	Upsert(ctx context.Context, entry searchindex.Entry) error
	DeleteByFile(ctx context.Context, fileID string) (int64, error)
	DeleteByOwner(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context, filter searchindex.Filter) (int64, error)
}

type IndexWriteConfig struct {
	Retries        uint64
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

func indexEntry(doc *entity.Document, chunk *entity.Chunk, vector []float32) searchindex.Entry {
	filename := doc.OriginalFilename
	return searchindex.Entry{
		ChunkID:    chunk.Id.String(),
		FileID:     doc.Id.String(),
		UserID:     doc.UserId.String(),
		Content:    chunk.Content,
		Embedding:  vector,
		ChunkIndex: chunk.ChunkIndex,
		PageNumber: chunk.PageNumber,
		Filename:   &filename,
		CreatedAt:  chunk.CreatedAt,
	}
}

// writeEntry upserts with backoff. Errors that another attempt cannot fix
// end the loop at once.
func writeEntry(ctx context.Context, index DocumentIndex, cfg IndexWriteConfig, entry searchindex.Entry) error {
	return utils.Retry(ctx, cfg.Retries, cfg.RetryBaseDelay, func(ctx context.Context) error {
		wctx, cancel := withTimeout(ctx, cfg.Timeout)
		defer cancel()

		err := index.Upsert(wctx, entry)
		if fatalIndexError(err) ||
			errors.Is(err, searchindex.ErrBadRequest) ||
			errors.Is(err, searchindex.ErrOwnerRequired) ||
			errors.Is(err, searchindex.ErrMissingChunkID) {
			return utils.Permanent(err)
		}
		return err
	})
}

// fatalIndexError reports failures caused by configuration rather than by
// the chunk: every later write would fail the same way.
func fatalIndexError(err error) bool {
	return errors.Is(err, embedding.ErrDimensionMismatch) ||
		errors.Is(err, searchindex.ErrDimensionMismatch) ||
		errors.Is(err, searchindex.ErrUnauthorized)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
