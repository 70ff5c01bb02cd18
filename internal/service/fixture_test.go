package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-docsearch-be/internal/entity"
	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/internal/repository/contract"
	repomemory "ai-docsearch-be/internal/repository/memory"
	"ai-docsearch-be/internal/repository/unitofwork"
	"ai-docsearch-be/pkg/blob"
	"ai-docsearch-be/pkg/embedding"
	"ai-docsearch-be/pkg/events"
	"ai-docsearch-be/pkg/extract"
	"ai-docsearch-be/pkg/searchindex"
	searchmemory "ai-docsearch-be/pkg/searchindex/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testDim = 16

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type recordingReindex struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recordingReindex) Publish(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

// flakyIndex fails upserts for one chunk position and can fail deletes.
type flakyIndex struct {
	DocumentIndex
	failChunk   int
	deleteErr   error
	mu          sync.Mutex
	attempts    map[int]int
	deleteCalls int
}

func (f *flakyIndex) Upsert(ctx context.Context, entry searchindex.Entry) error {
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = map[int]int{}
	}
	f.attempts[entry.ChunkIndex]++
	f.mu.Unlock()
	if entry.ChunkIndex == f.failChunk {
		return errors.New("connection reset by peer")
	}
	return f.DocumentIndex.Upsert(ctx, entry)
}

func (f *flakyIndex) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	f.mu.Lock()
	f.deleteCalls++
	f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.DocumentIndex.DeleteByFile(ctx, fileID)
}

// failingChunkFactory hands out units of work whose chunk inserts fail at one position.
type failingChunkFactory struct {
	unitofwork.RepositoryFactory
	failAt int
}

func (f failingChunkFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return failingUoW{UnitOfWork: f.RepositoryFactory.NewUnitOfWork(ctx), failAt: f.failAt}
}

type failingUoW struct {
	unitofwork.UnitOfWork
	failAt int
}

func (u failingUoW) ChunkRepository() contract.ChunkRepository {
	return failingChunks{ChunkRepository: u.UnitOfWork.ChunkRepository(), failAt: u.failAt}
}

type failingChunks struct {
	contract.ChunkRepository
	failAt int
}

func (c failingChunks) Create(ctx context.Context, chunk *entity.Chunk) error {
	if chunk.ChunkIndex == c.failAt {
		return errors.New("no space left on device")
	}
	return c.ChunkRepository.Create(ctx, chunk)
}

type serviceFixture struct {
	store    *repomemory.Store
	factory  unitofwork.RepositoryFactory
	backend  *searchmemory.Backend
	manager  *searchindex.Manager
	embedder *embedding.FallbackProvider
	blobs    *blob.DiskStore
	events   *recordingEvents
	reindex  *recordingReindex
	log      logger.ILogger
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	log := logger.NewNopLogger()

	backend := searchmemory.NewBackend()
	manager, err := searchindex.NewManager(backend, searchindex.ManagerConfig{Dimension: testDim}, log)
	require.NoError(t, err)
	require.NoError(t, manager.Ensure(context.Background()))

	embedder, err := embedding.NewFallbackProvider(testDim)
	require.NoError(t, err)

	blobs, err := blob.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	store := repomemory.NewStore()
	return &serviceFixture{
		store:    store,
		factory:  repomemory.NewRepositoryFactory(store),
		backend:  backend,
		manager:  manager,
		embedder: embedder,
		blobs:    blobs,
		events:   &recordingEvents{},
		reindex:  &recordingReindex{},
		log:      log,
	}
}

func testIngestionConfig() IngestionConfig {
	cfg := DefaultIngestionConfig()
	cfg.ChunkSize = 20
	cfg.ChunkOverlap = 5
	cfg.Workers = 2
	cfg.IndexWrite = IndexWriteConfig{Retries: 2, RetryBaseDelay: time.Millisecond, Timeout: time.Second}
	return cfg
}

func (f *serviceFixture) documentService(t *testing.T, index DocumentIndex, factory unitofwork.RepositoryFactory) IDocumentService {
	t.Helper()
	if index == nil {
		index = f.manager
	}
	if factory == nil {
		factory = f.factory
	}
	svc, err := NewDocumentService(
		factory,
		extract.NewTextExtractor(),
		f.blobs,
		f.embedder,
		index,
		f.reindex,
		f.events,
		testIngestionConfig(),
		f.log,
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func (f *serviceFixture) reconcileService(index DocumentIndex) IReconcileService {
	if index == nil {
		index = f.manager
	}
	return NewReconcileService(f.factory, f.embedder, index, testIngestionConfig(), f.log)
}

// failingDocumentFactory hands out units of work whose document repository
// fails deletes, or fails moving a document into failStatus.
type failingDocumentFactory struct {
	unitofwork.RepositoryFactory
	deleteErr  error
	failStatus entity.DocumentStatus
}

func (f failingDocumentFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return failingDocumentUoW{UnitOfWork: f.RepositoryFactory.NewUnitOfWork(ctx), factory: f}
}

type failingDocumentUoW struct {
	unitofwork.UnitOfWork
	factory failingDocumentFactory
}

func (u failingDocumentUoW) DocumentRepository() contract.DocumentRepository {
	return failingDocuments{DocumentRepository: u.UnitOfWork.DocumentRepository(), factory: u.factory}
}

type failingDocuments struct {
	contract.DocumentRepository
	factory failingDocumentFactory
}

func (d failingDocuments) Delete(ctx context.Context, id uuid.UUID) error {
	if d.factory.deleteErr != nil {
		return d.factory.deleteErr
	}
	return d.DocumentRepository.Delete(ctx, id)
}

func (d failingDocuments) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DocumentStatus, processingError *string) error {
	if d.factory.failStatus != "" && status == d.factory.failStatus {
		return errors.New("connection lost during commit")
	}
	return d.DocumentRepository.UpdateStatus(ctx, id, status, processingError)
}

// rejectingIndex answers every upsert with a fixed error.
type rejectingIndex struct {
	DocumentIndex
	err     error
	mu      sync.Mutex
	upserts int
}

func (r *rejectingIndex) Upsert(ctx context.Context, entry searchindex.Entry) error {
	r.mu.Lock()
	r.upserts++
	r.mu.Unlock()
	return r.err
}

func (r *rejectingIndex) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}
