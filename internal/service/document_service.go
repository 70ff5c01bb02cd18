package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ai-docsearch-be/internal/dto"
	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/internal/repository/contract"
	"ai-docsearch-be/internal/repository/specification"
	"ai-docsearch-be/internal/repository/unitofwork"
	"ai-docsearch-be/pkg/blob"
	"ai-docsearch-be/pkg/chunker"
	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/events"
	"ai-docsearch-be/pkg/extract"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	documentModule   = "DOCUMENT"
	defaultListLimit = 50
	maxListLimit     = 200
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrForbidden        = errors.New("document belongs to another user")
	ErrEmptyFile        = errors.New("file is empty")
)

// IngestionError reports a document that was created but could not be
// processed. The document is left in the failed state.
type IngestionError struct {
	DocumentId uuid.UUID
	Stage      string
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest document %s: %s: %v", e.DocumentId, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

type IngestionConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	DefaultPage    int
	Workers        int
	EmbedTimeout   time.Duration
	BackendTimeout time.Duration
	IndexWrite     IndexWriteConfig
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		ChunkSize:      chunker.DefaultChunkSize,
		ChunkOverlap:   chunker.DefaultOverlap,
		DefaultPage:    chunker.DefaultPage,
		Workers:        4,
		EmbedTimeout:   30 * time.Second,
		BackendTimeout: 10 * time.Second,
		IndexWrite: IndexWriteConfig{
			Retries:        3,
			RetryBaseDelay: 200 * time.Millisecond,
			Timeout:        10 * time.Second,
		},
	}
}

type IDocumentService interface {
	Upload(ctx context.Context, userId uuid.UUID, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error)
	List(ctx context.Context, userId uuid.UUID, limit int) ([]*dto.DocumentResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userId uuid.UUID) (*dto.DeleteAllDocumentsResponse, error)
	Close()
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	extractor        extract.Extractor
	blobs            blob.Store
	embedder         embedding.EmbeddingProvider
	index            DocumentIndex
	publisherService IPublisherService
	eventPublisher   events.Publisher
	pool             *ants.Pool
	cfg              IngestionConfig
	logger           logger.ILogger
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	extractor extract.Extractor,
	blobs blob.Store,
	embedder embedding.EmbeddingProvider,
	index DocumentIndex,
	publisherService IPublisherService,
	eventPublisher events.Publisher,
	cfg IngestionConfig,
	log logger.ILogger,
) (IDocumentService, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultIngestionConfig().Workers
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create ingest worker pool: %w", err)
	}
	return &documentService{
		uowFactory:       uowFactory,
		extractor:        extractor,
		blobs:            blobs,
		embedder:         embedder,
		index:            index,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		pool:             pool,
		cfg:              cfg,
		logger:           log,
	}, nil
}

func (s *documentService) Close() {
	s.pool.Release()
}

func (s *documentService) Upload(ctx context.Context, userId uuid.UUID, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error) {
	ctx, span := otel.Tracer("document-service").Start(ctx, "documentService.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("document.filename", req.Filename), attribute.Int("document.size", len(req.Data)))

	if len(req.Data) == 0 {
		return nil, ErrEmptyFile
	}

	// 1. Extract before anything is written
	extracted, err := s.extractor.Extract(req.Filename, req.Data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", req.Filename, err)
	}

	// 2. Store the original bytes
	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = extracted.MimeType
	}
	key := blob.UploadKey(userId.String(), req.Filename)
	bctx, cancel := withTimeout(ctx, s.cfg.BackendTimeout)
	err = s.blobs.Put(bctx, key, req.Data, contentType)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	// 3. Record the document
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc := &entity.Document{
		Id:               uuid.New(),
		UserId:           userId,
		OriginalFilename: req.Filename,
		ContentType:      contentType,
		FilePath:         key,
		FileSize:         int64(len(req.Data)),
		Status:           entity.DocumentStatusUploaded,
		ExtractionInfo: entity.ExtractionInfo{
			Extractor: extracted.Extractor,
			MimeType:  extracted.MimeType,
			CharCount: extracted.CharCount,
			PageCount: 1,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		s.removeBlob(ctx, key)
		return nil, fmt.Errorf("create document record: %w", err)
	}
	span.SetAttributes(attribute.String("document.id", doc.Id.String()))

	if err := uow.DocumentRepository().UpdateStatus(ctx, doc.Id, entity.DocumentStatusProcessing, nil); err != nil {
		return nil, &IngestionError{DocumentId: doc.Id, Stage: "status", Err: err}
	}
	doc.Status = entity.DocumentStatusProcessing

	// 4. Chunk; indices are fixed here, before any concurrent write
	pieces := chunker.Split(extracted.Text, s.cfg.ChunkSize, s.cfg.ChunkOverlap, s.cfg.DefaultPage)

	// 5. Persist each chunk in order, then index it on the pool. Chunk rows
	// commit together so a failed document keeps none of them.
	if err := uow.Begin(ctx); err != nil {
		ingestErr := &IngestionError{DocumentId: doc.Id, Stage: "begin chunks", Err: err}
		s.markFailed(ctx, uow, doc, ingestErr)
		return nil, ingestErr
	}
	var (
		wg        sync.WaitGroup
		indexed   atomic.Int64
		created   int
		halted    atomic.Bool
		haltOnce  sync.Once
		haltCause error
	)
	for _, piece := range pieces {
		if halted.Load() {
			break
		}
		page := piece.Page
		chunk := &entity.Chunk{
			Id:         uuid.New(),
			DocumentId: doc.Id,
			ChunkIndex: piece.Index,
			Content:    piece.Content,
			PageNumber: &page,
			CreatedAt:  time.Now().UTC(),
		}
		if err := uow.ChunkRepository().Create(ctx, chunk); err != nil {
			wg.Wait()
			s.rollback(uow, doc)
			ingestErr := &IngestionError{DocumentId: doc.Id, Stage: fmt.Sprintf("insert chunk %d", piece.Index), Err: err}
			s.markFailed(ctx, uow, doc, ingestErr)
			span.RecordError(ingestErr)
			span.SetStatus(codes.Error, "chunk insert failed")
			return nil, ingestErr
		}
		created++

		wg.Add(1)
		job := func() {
			defer wg.Done()
			if halted.Load() {
				return
			}
			err := s.indexChunk(ctx, doc, chunk)
			switch {
			case err == nil:
				indexed.Add(1)
			case fatalIndexError(err):
				haltOnce.Do(func() {
					haltCause = err
					halted.Store(true)
				})
			}
		}
		if err := s.pool.Submit(job); err != nil {
			s.logger.Warn(documentModule, "Worker pool rejected index job, running inline", map[string]interface{}{
				"document_id": doc.Id.String(),
				"error":       err.Error(),
			})
			job()
		}
	}

	// 6. Wait for the index writes
	wg.Wait()

	// A misconfigured embedder or index fails every chunk the same way
	if halted.Load() {
		s.rollback(uow, doc)
		ingestErr := &IngestionError{DocumentId: doc.Id, Stage: "index", Err: haltCause}
		s.markFailed(ctx, uow, doc, ingestErr)
		span.RecordError(ingestErr)
		span.SetStatus(codes.Error, "index configuration error")
		return nil, ingestErr
	}
	if err := uow.Commit(); err != nil {
		ingestErr := &IngestionError{DocumentId: doc.Id, Stage: "commit chunks", Err: err}
		s.markFailed(ctx, uow, doc, ingestErr)
		span.RecordError(ingestErr)
		span.SetStatus(codes.Error, "chunk commit failed")
		return nil, ingestErr
	}

	if err := uow.DocumentRepository().UpdateStatus(ctx, doc.Id, entity.DocumentStatusProcessed, nil); err != nil {
		ingestErr := &IngestionError{DocumentId: doc.Id, Stage: "status", Err: err}
		s.markFailed(ctx, uow, doc, ingestErr)
		span.RecordError(ingestErr)
		span.SetStatus(codes.Error, "status update failed")
		return nil, ingestErr
	}

	gaps := created - int(indexed.Load())
	span.SetAttributes(attribute.Int("document.chunks", created), attribute.Int("document.index_gaps", gaps))

	// 7. Queue repair of missing index entries
	if gaps > 0 {
		s.logger.Warn(documentModule, "Document processed with index gaps", map[string]interface{}{
			"document_id": doc.Id.String(),
			"chunks":      created,
			"gaps":        gaps,
		})
		s.requestReindex(ctx, doc.Id, gaps)
	}

	s.logger.Info(documentModule, "Document processed", map[string]interface{}{
		"document_id": doc.Id.String(),
		"user_id":     userId.String(),
		"chunks":      created,
		"indexed":     indexed.Load(),
	})

	// 8. Notify subscribers
	s.publishEvent(ctx, events.DocumentProcessed, doc, map[string]interface{}{
		"filename":       doc.OriginalFilename,
		"chunks_created": created,
		"index_gaps":     gaps,
	})

	return &dto.UploadDocumentResponse{
		FileId:        doc.Id,
		Filename:      doc.OriginalFilename,
		Status:        string(entity.DocumentStatusProcessed),
		ChunksCreated: created,
		ChunksIndexed: int(indexed.Load()),
		IndexGaps:     gaps,
		FilePath:      key,
	}, nil
}

// indexChunk embeds and writes one chunk. Transient failures are logged and
// left to reconciliation; configuration failures are logged as errors and
// returned so the caller can stop.
func (s *documentService) indexChunk(ctx context.Context, doc *entity.Document, chunk *entity.Chunk) error {
	ectx, cancel := withTimeout(ctx, s.cfg.EmbedTimeout)
	vector, err := s.embedder.Generate(ectx, chunk.Content)
	cancel()
	if err != nil {
		s.logIndexFailure("Failed to embed chunk", doc, chunk, err)
		return err
	}

	if err := writeEntry(ctx, s.index, s.cfg.IndexWrite, indexEntry(doc, chunk, vector)); err != nil {
		s.logIndexFailure("Failed to index chunk", doc, chunk, err)
		return err
	}
	return nil
}

func (s *documentService) logIndexFailure(msg string, doc *entity.Document, chunk *entity.Chunk, err error) {
	fields := map[string]interface{}{
		"document_id": doc.Id.String(),
		"chunk_index": chunk.ChunkIndex,
		"error":       err.Error(),
	}
	if fatalIndexError(err) {
		s.logger.Error(documentModule, msg, fields)
		return
	}
	s.logger.Warn(documentModule, msg, fields)
}

func (s *documentService) rollback(uow unitofwork.UnitOfWork, doc *entity.Document) {
	if err := uow.Rollback(); err != nil {
		s.logger.Error(documentModule, "Failed to roll back chunk inserts", map[string]interface{}{
			"document_id": doc.Id.String(),
			"error":       err.Error(),
		})
	}
}

// markFailed records the failure and withdraws whatever was already indexed,
// so a failed document is never searchable.
func (s *documentService) markFailed(ctx context.Context, uow unitofwork.UnitOfWork, doc *entity.Document, cause error) {
	reason := cause.Error()
	if err := uow.DocumentRepository().UpdateStatus(ctx, doc.Id, entity.DocumentStatusFailed, &reason); err != nil {
		s.logger.Error(documentModule, "Failed to mark document as failed", map[string]interface{}{
			"document_id": doc.Id.String(),
			"error":       err.Error(),
		})
	}

	dctx, cancel := withTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()
	if _, err := s.index.DeleteByFile(dctx, doc.Id.String()); err != nil {
		s.logger.Warn(documentModule, "Failed to withdraw index entries of failed document", map[string]interface{}{
			"document_id": doc.Id.String(),
			"error":       err.Error(),
		})
	}

	s.logger.Error(documentModule, "Document ingestion failed", map[string]interface{}{
		"document_id": doc.Id.String(),
		"error":       reason,
	})
	s.publishEvent(ctx, events.DocumentFailed, doc, map[string]interface{}{
		"filename": doc.OriginalFilename,
		"error":    reason,
	})
}

func (s *documentService) requestReindex(ctx context.Context, documentId uuid.UUID, gaps int) {
	if s.publisherService == nil {
		return
	}
	payload, err := json.Marshal(dto.PublishReindexMessage{DocumentId: documentId, Gaps: gaps})
	if err == nil {
		err = s.publisherService.Publish(ctx, payload)
	}
	if err != nil {
		s.logger.Warn(documentModule, "Failed to queue reindex", map[string]interface{}{
			"document_id": documentId.String(),
			"error":       err.Error(),
		})
	}
}

func (s *documentService) publishEvent(ctx context.Context, eventType string, doc *entity.Document, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.NewDocumentEvent(eventType, doc.UserId.String(), doc.Id.String(), data)
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn(documentModule, "Failed to publish event", map[string]interface{}{
			"event":       eventType,
			"document_id": doc.Id.String(),
			"error":       err.Error(),
		})
	}
}

func (s *documentService) removeBlob(ctx context.Context, key string) {
	bctx, cancel := withTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()
	if err := s.blobs.Delete(bctx, key); err != nil {
		s.logger.Warn(documentModule, "Failed to delete file from storage", map[string]interface{}{
			"file_path": key,
			"error":     err.Error(),
		})
	}
}

// ownedDocument loads a document and checks that userId owns it.
func (s *documentService) ownedDocument(ctx context.Context, uow unitofwork.UnitOfWork, userId, id uuid.UUID) (*entity.Document, error) {
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if !doc.OwnedBy(userId) {
		return nil, ErrForbidden
	}
	return doc, nil
}

func (s *documentService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.ownedDocument(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (s *documentService) List(ctx context.Context, userId uuid.UUID, limit int) ([]*dto.DocumentResponse, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		res = append(res, toDocumentResponse(doc))
	}
	return res, nil
}

// Delete removes index entries, then the stored file, then the record. The
// first two are best effort; only the record delete can fail the call.
func (s *documentService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	ctx, span := otel.Tracer("document-service").Start(ctx, "documentService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", id.String()))

	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.ownedDocument(ctx, uow, userId, id)
	if err != nil {
		return err
	}

	if err := s.deleteDocument(ctx, uow, doc, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	return nil
}

func (s *documentService) deleteDocument(ctx context.Context, uow unitofwork.UnitOfWork, doc *entity.Document, withIndex bool) error {
	if withIndex {
		ictx, cancel := withTimeout(ctx, s.cfg.BackendTimeout)
		removed, err := s.index.DeleteByFile(ictx, doc.Id.String())
		cancel()
		if err != nil {
			s.logger.Warn(documentModule, "Failed to delete index entries", map[string]interface{}{
				"document_id": doc.Id.String(),
				"error":       err.Error(),
			})
		} else {
			s.logger.Debug(documentModule, "Deleted index entries", map[string]interface{}{
				"document_id": doc.Id.String(),
				"removed":     removed,
			})
		}
	}

	s.removeBlob(ctx, doc.FilePath)

	if err := uow.DocumentRepository().Delete(ctx, doc.Id); err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("delete document %s: %w", doc.Id, err)
	}

	s.logger.Info(documentModule, "Document deleted", map[string]interface{}{
		"document_id": doc.Id.String(),
		"user_id":     doc.UserId.String(),
	})
	s.publishEvent(ctx, events.DocumentDeleted, doc, map[string]interface{}{
		"filename": doc.OriginalFilename,
	})
	return nil
}

func (s *documentService) DeleteAllForUser(ctx context.Context, userId uuid.UUID) (*dto.DeleteAllDocumentsResponse, error) {
	res := &dto.DeleteAllDocumentsResponse{}

	ictx, cancel := withTimeout(ctx, s.cfg.BackendTimeout)
	removed, err := s.index.DeleteByOwner(ictx, userId.String())
	cancel()
	if err != nil {
		s.logger.Warn(documentModule, "Failed to delete owner index entries", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}
	res.IndexEntries = removed
	// per-document index deletes only when the owner-wide delete failed
	perDocument := err != nil

	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return res, err
	}

	var errs []error
	for _, doc := range docs {
		if err := s.deleteDocument(ctx, uow, doc, perDocument); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Documents++
	}
	return res, errors.Join(errs...)
}

func toDocumentResponse(doc *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:              doc.Id,
		Filename:        doc.OriginalFilename,
		ContentType:     doc.ContentType,
		FileSize:        doc.FileSize,
		Status:          string(doc.Status),
		ProcessingError: doc.ProcessingError,
		ExtractionInfo: dto.ExtractionInfoResponse{
			Extractor: doc.ExtractionInfo.Extractor,
			MimeType:  doc.ExtractionInfo.MimeType,
			CharCount: doc.ExtractionInfo.CharCount,
			PageCount: doc.ExtractionInfo.PageCount,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
