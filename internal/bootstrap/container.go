package bootstrap

import (
	"context"
	"fmt"
	"time"

	"ai-docsearch-be/internal/config"
	"ai-docsearch-be/internal/controller"
	"ai-docsearch-be/internal/pkg/logger"
	"ai-docsearch-be/internal/service"
	"ai-docsearch-be/pkg/events"
	"ai-docsearch-be/pkg/extract"
	pktNats "ai-docsearch-be/pkg/nats"
	"ai-docsearch-be/pkg/rag/retriever"
	"ai-docsearch-be/pkg/searchindex"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	SearchController   controller.ISearchController

	// Services
	DocumentService  service.IDocumentService
	ReconcileService service.IReconcileService
	SearchService    service.ISearchService

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	IndexManager *searchindex.Manager
	Logger       logger.ILogger

	closers []func()
}

// NewContainer wires every component from cfg. db may be nil, in which case
// documents and chunks live in process memory.
func NewContainer(db *gorm.DB, cfg *config.Config) (_ *Container, err error) {
	c := &Container{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c.Logger = sysLogger

	// 1. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	var eventPublisher events.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable, document events disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// 2. AI providers
	embedder, closeCache, err := newEmbedder(cfg, sysLogger)
	if err != nil {
		return nil, err
	}
	if closeCache != nil {
		c.closers = append(c.closers, closeCache)
	}
	reranker, err := newReranker(cfg)
	if err != nil {
		return nil, fmt.Errorf("init reranker: %w", err)
	}

	// 3. Search index
	backend, err := newSearchBackend(cfg, db)
	if err != nil {
		return nil, fmt.Errorf("init search backend: %w", err)
	}
	manager, err := newIndexManager(cfg, backend, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("init index manager: %w", err)
	}
	startupTimeout := cfg.Search.BackendTimeout
	if startupTimeout <= 0 {
		startupTimeout = 10 * time.Second
	}
	ensureCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := manager.Ensure(ensureCtx); err != nil {
		if !unreachable(err) {
			return nil, fmt.Errorf("ensure search index: %w", err)
		}
		// searches degrade and the reconciler repairs once the backend is back
		sysLogger.Warn("BOOTSTRAP", "Search index not ready", map[string]interface{}{
			"backend": backend.Name(),
			"index":   manager.Index(),
			"error":   err.Error(),
		})
	}

	embedTimeout := cfg.Ai.RequestTimeout
	if embedTimeout <= 0 {
		embedTimeout = startupTimeout
	}
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), embedTimeout)
	defer cancelCheck()
	if err := checkEmbeddingDimension(checkCtx, embedder, manager.Dimension(), sysLogger); err != nil {
		return nil, err
	}
	c.IndexManager = manager

	// 4. Storage
	blobs, err := newBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	uowFactory := newRepositoryFactory(db)

	// 5. Services
	ingestCfg := ingestionConfig(cfg)
	publisherService := service.NewPublisherService(cfg.Ingestion.ReindexTopic, pubSub)

	documentService, err := service.NewDocumentService(
		uowFactory,
		extract.NewTextExtractor(),
		blobs,
		embedder,
		manager,
		publisherService,
		eventPublisher,
		ingestCfg,
		sysLogger,
	)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, documentService.Close)

	reconcileService := service.NewReconcileService(uowFactory, embedder, manager, ingestCfg, sysLogger)

	rcfg := retriever.DefaultConfig()
	rcfg.EmbedTimeout = cfg.Ai.RequestTimeout
	rcfg.RerankTimeout = cfg.Ai.RequestTimeout
	searchService := service.NewSearchService(
		retriever.New(embedder, manager, reranker, rcfg, sysLogger),
		manager,
		sysLogger,
	)

	c.DocumentService = documentService
	c.ReconcileService = reconcileService
	c.SearchService = searchService
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Ingestion.ReindexTopic, reconcileService, sysLogger)

	// 6. Controllers
	c.DocumentController = controller.NewDocumentController(documentService, reconcileService)
	c.SearchController = controller.NewSearchController(searchService)

	return c, nil
}

func ingestionConfig(cfg *config.Config) service.IngestionConfig {
	ic := service.DefaultIngestionConfig()
	ic.ChunkSize = cfg.Ingestion.ChunkSize
	ic.ChunkOverlap = cfg.Ingestion.ChunkOverlap
	ic.Workers = cfg.Ingestion.Workers
	ic.EmbedTimeout = cfg.Ai.RequestTimeout
	ic.BackendTimeout = cfg.Search.BackendTimeout
	retries := cfg.Ingestion.IndexWriteRetries
	if retries < 0 {
		retries = 0
	}
	ic.IndexWrite = service.IndexWriteConfig{
		Retries:        uint64(retries),
		RetryBaseDelay: cfg.Ingestion.RetryBaseDelay,
		Timeout:        cfg.Search.BackendTimeout,
	}
	return ic
}

// Close releases workers and connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
