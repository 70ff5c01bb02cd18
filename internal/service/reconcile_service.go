package service

import (
	"context"
	"errors"
	"fmt"

	"ai-docsearch-be/internal/dto"
	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/internal/repository/specification"
	"ai-docsearch-be/internal/repository/unitofwork"
	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/searchindex"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const reconcileModule = "RECONCILE"

// ReconcileReport compares one document's chunk rows with its index entries.
type ReconcileReport struct {
	DocumentId uuid.UUID
	Chunks     int
	Indexed    int64
	Repaired   int
	Failed     int
	InSync     bool
	// Skipped is set for documents that are not processed yet or failed.
	Skipped bool
}

type IReconcileService interface {
	Reconcile(ctx context.Context, documentId uuid.UUID) (*ReconcileReport, error)
	ReconcileOwned(ctx context.Context, userId uuid.UUID, documentId uuid.UUID) (*dto.ReconcileResponse, error)
	ReconcileOwner(ctx context.Context, userId uuid.UUID) ([]*ReconcileReport, error)
	ReconcileAll(ctx context.Context) ([]*ReconcileReport, error)
}

type reconcileService struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
	index      DocumentIndex
	cfg        IngestionConfig
	logger     logger.ILogger
}

func NewReconcileService(
	uowFactory unitofwork.RepositoryFactory,
	embedder embedding.EmbeddingProvider,
	index DocumentIndex,
	cfg IngestionConfig,
	log logger.ILogger,
) IReconcileService {
	return &reconcileService{
		uowFactory: uowFactory,
		embedder:   embedder,
		index:      index,
		cfg:        cfg,
		logger:     log,
	}
}

// Reconcile rewrites every chunk of a processed document into the index when
// the index count differs from the content store. Upserts are keyed by chunk
// id, so running it twice is harmless.
func (s *reconcileService) Reconcile(ctx context.Context, documentId uuid.UUID) (*ReconcileReport, error) {
	ctx, span := otel.Tracer("reconcile-service").Start(ctx, "reconcileService.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentId.String()))

	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return s.reconcile(ctx, uow, doc)
}

func (s *reconcileService) reconcile(ctx context.Context, uow unitofwork.UnitOfWork, doc *entity.Document) (*ReconcileReport, error) {
	report := &ReconcileReport{DocumentId: doc.Id}
	if doc.Status != entity.DocumentStatusProcessed {
		report.Skipped = true
		return report, nil
	}

	chunks, err := uow.ChunkRepository().FindAll(ctx,
		specification.ByDocumentID{DocumentID: doc.Id},
		specification.OrderBy{Field: "chunk_index"},
	)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	report.Chunks = len(chunks)

	cctx, cancel := withTimeout(ctx, s.cfg.BackendTimeout)
	indexed, err := s.index.Count(cctx, searchindex.Filter{FileID: doc.Id.String()})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("count index entries: %w", err)
	}
	report.Indexed = indexed

	if indexed == int64(len(chunks)) {
		report.InSync = true
		return report, nil
	}

	// entries without a chunk row cannot be singled out, so start clean
	if indexed > int64(len(chunks)) {
		dctx, cancel := withTimeout(ctx, s.cfg.BackendTimeout)
		_, err := s.index.DeleteByFile(dctx, doc.Id.String())
		cancel()
		if err != nil {
			return nil, fmt.Errorf("clear stale index entries: %w", err)
		}
	}
	if len(chunks) == 0 {
		report.InSync = true
		return report, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	ectx, cancel := withTimeout(ctx, s.cfg.EmbedTimeout)
	vectors, err := s.embedder.GenerateBatch(ectx, texts)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	for i, chunk := range chunks {
		if err := writeEntry(ctx, s.index, s.cfg.IndexWrite, indexEntry(doc, chunk, vectors[i])); err != nil {
			if fatalIndexError(err) {
				return nil, fmt.Errorf("repair chunk %d: %w", chunk.ChunkIndex, err)
			}
			report.Failed++
			s.logger.Warn(reconcileModule, "Failed to repair index entry", map[string]interface{}{
				"document_id": doc.Id.String(),
				"chunk_index": chunk.ChunkIndex,
				"error":       err.Error(),
			})
			continue
		}
		report.Repaired++
	}
	report.InSync = report.Failed == 0

	s.logger.Info(reconcileModule, "Document reconciled", map[string]interface{}{
		"document_id": doc.Id.String(),
		"chunks":      report.Chunks,
		"indexed":     report.Indexed,
		"repaired":    report.Repaired,
		"failed":      report.Failed,
	})
	return report, nil
}

func (s *reconcileService) ReconcileOwned(ctx context.Context, userId uuid.UUID, documentId uuid.UUID) (*dto.ReconcileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if !doc.OwnedBy(userId) {
		return nil, ErrForbidden
	}

	report, err := s.reconcile(ctx, uow, doc)
	if err != nil {
		return nil, err
	}
	return &dto.ReconcileResponse{
		DocumentId: report.DocumentId,
		Chunks:     report.Chunks,
		Indexed:    report.Indexed,
		Repaired:   report.Repaired,
		Failed:     report.Failed,
		InSync:     report.InSync,
		Skipped:    report.Skipped,
	}, nil
}

func (s *reconcileService) ReconcileOwner(ctx context.Context, userId uuid.UUID) ([]*ReconcileReport, error) {
	return s.reconcileMany(ctx, specification.UserOwnedBy{UserID: userId})
}

func (s *reconcileService) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	return s.reconcileMany(ctx)
}

// reconcileMany keeps going past a failing document and joins the errors.
func (s *reconcileService) reconcileMany(ctx context.Context, specs ...specification.Specification) ([]*ReconcileReport, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	specs = append(specs,
		specification.ByStatus{Status: string(entity.DocumentStatusProcessed)},
		specification.OrderBy{Field: "created_at"},
	)
	docs, err := uow.DocumentRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	reports := make([]*ReconcileReport, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := s.reconcile(ctx, uow, doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", doc.Id, err))
			if fatalIndexError(err) {
				break
			}
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}
