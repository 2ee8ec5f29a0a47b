package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkorchagin/context-assistant/internal/config"
	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
	"github.com/mkorchagin/context-assistant/internal/core/usecase"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/chunking"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/extractor"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/extractor/pdf"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/llm/ollama"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/queue/nats"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/repository/postgres"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/resilience"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/storage/localfs"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/tokens"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/tools/mcp"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/vector/qdrant"
)

// App wires the full dependency graph for both binaries. The api binary
// serves the chat and document surface; the worker binary drains the
// ingestion queue.
type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	StoredRepo ports.StoredDocumentRepository

	ChatUC    ports.ChatService
	IndexerUC ports.DocumentIndexer
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	storedRepo := postgres.NewDocumentRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	snapshotRepo := postgres.NewSnapshotRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	memory := qdrant.NewMemoryClient(cfg.QdrantURL, cfg.QdrantMemoryCollection)

	estimator, err := buildEstimator(cfg, log)
	if err != nil {
		return nil, err
	}

	chunker := chunking.New(cfg.ChunkSize, cfg.ChunkOverlap).ForMode(cfg.ChunkMode)
	indexUC := usecase.NewIndexUseCase(chunker, embedder)
	if err := restoreIndex(ctx, indexUC, snapshotRepo, log); err != nil {
		return nil, err
	}

	var reranker *usecase.Reranker
	if cfg.RAGEnableReranking {
		reranker = usecase.NewReranker(generator)
	}
	retrievalUC := usecase.NewRetrievalUseCase(indexUC, embedder, reranker)

	compressor := usecase.NewCompressor(generator, estimator, usecase.CompressorConfig{
		Threshold:        cfg.CompressionThreshold,
		SummaryMaxTokens: cfg.SummaryMaxTokens,
	}, log)

	indexer := indexerFacade{index: indexUC}
	toolExecutor, err := buildToolExecutor(ctx, cfg, retrievalUC, indexer)
	if err != nil {
		return nil, fmt.Errorf("init tool executor: %w", err)
	}

	loop := usecase.NewToolLoop(generator, toolExecutor, cfg.MaxIterations, log)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Index:      indexUC,
		Retrieval:  retrievalUC,
		Compressor: compressor,
		Loop:       loop,

		Embedder:   embedder,
		Executor:   toolExecutor,
		Messages:   messageRepo,
		IndexStore: snapshotRepo,
		Memory:     memory,

		SearchConfig: searchConfig(cfg),
		Logger:       log,
	})

	extractorSelector := extractor.NewSelector(
		plaintext.NewExtractor(storage),
		pdf.NewExtractor(storage),
	)

	ingestUC := usecase.NewIngestDocumentUseCase(storedRepo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(storedRepo, extractorSelector, orchestrator)

	return &App{
		Config: cfg,

		Queue:      queue,
		StoredRepo: storedRepo,

		ChatUC:    orchestrator,
		IndexerUC: orchestrator,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: func() {
			_ = toolExecutor.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func searchConfig(cfg config.Config) domain.SearchConfig {
	out := domain.DefaultSearchConfig()
	if cfg.RAGTopK > 0 {
		out.TopK = cfg.RAGTopK
	}
	out.MinSimilarity = cfg.RAGMinSimilarity
	out.EnableReranking = cfg.RAGEnableReranking
	if cfg.RAGRerankTopN > 0 {
		out.RerankTopN = cfg.RAGRerankTopN
	}
	out.MinRerankScore = cfg.RAGMinRerankScore
	out.UseHybridScoring = cfg.RAGHybridScoring
	return out
}

func buildEstimator(cfg config.Config, log *slog.Logger) (ports.TokenEstimator, error) {
	if !cfg.UseTiktoken {
		return tokens.CharEstimator{}, nil
	}
	estimator, err := tokens.NewTiktokenEstimator()
	if err != nil {
		log.Warn("tiktoken unavailable, falling back to character estimator", "error", err)
		return tokens.CharEstimator{}, nil
	}
	return estimator, nil
}

func restoreIndex(ctx context.Context, index *usecase.IndexUseCase, snapshots *postgres.SnapshotRepository, log *slog.Logger) error {
	snapshot, err := snapshots.ReadIndex(ctx)
	if err != nil {
		return fmt.Errorf("read index snapshot: %w", err)
	}
	if snapshot == nil {
		return nil
	}
	if err := index.Restore(*snapshot); err != nil {
		return fmt.Errorf("restore index snapshot: %w", err)
	}
	log.Info("index restored from snapshot",
		"documents", len(snapshot.Documents),
		"embeddings", len(snapshot.Embeddings),
	)
	return nil
}

// buildToolExecutor speaks to an external MCP server when MCP_COMMAND
// is set, otherwise serves the built-in tools in process.
func buildToolExecutor(ctx context.Context, cfg config.Config, searcher mcp.Searcher, indexer ports.DocumentIndexer) (*mcp.Executor, error) {
	if command := strings.TrimSpace(cfg.MCPCommand); command != "" {
		parts := strings.Fields(command)
		return mcp.NewStdioExecutor(ctx, parts[0], nil, parts[1:]...)
	}
	srv := mcp.NewKnowledgeBaseServer(searcher, indexer)
	return mcp.NewInProcessExecutor(ctx, srv)
}

// indexerFacade exposes the bare index to the built-in tools without
// pulling in the orchestrator's snapshot writes.
type indexerFacade struct {
	index *usecase.IndexUseCase
}

func (f indexerFacade) IndexDocument(ctx context.Context, title, content string, metadata map[string]string) (*domain.Document, error) {
	return f.index.AddDocument(ctx, title, content, metadata)
}

func (f indexerFacade) RemoveDocument(ctx context.Context, documentID string) (bool, error) {
	return f.index.RemoveDocument(ctx, documentID)
}

func (f indexerFacade) ListDocuments(ctx context.Context) []domain.Document {
	return f.index.ListDocuments(ctx)
}
