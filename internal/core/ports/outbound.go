package ports

import (
	"context"
	"io"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

// EmbeddingGateway maps text to fixed-dimensionality vectors.
type EmbeddingGateway interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// LLMGateway produces a completion for a conversation, optionally with
// tool schemas attached. The response is an ordered list of content
// blocks (text and/or tool_use) plus token usage.
type LLMGateway interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error)
}

// ToolExecutor runs one named tool. A failed execution is reported
// through the returned error; the tool loop converts it into an
// error-flagged ToolResult rather than aborting.
type ToolExecutor interface {
	ListTools(ctx context.Context) ([]domain.ToolDefinition, error)
	Execute(ctx context.Context, name string, arguments map[string]string) (string, error)
}

// Chunker splits raw document text into retrievable segments.
type Chunker interface {
	Chunk(text, documentID string) ([]domain.TextChunk, error)
}

// IndexStore persists index snapshots as all-or-nothing blobs.
type IndexStore interface {
	ReadIndex(ctx context.Context) (*domain.IndexSnapshot, error)
	WriteIndex(ctx context.Context, snapshot domain.IndexSnapshot) error
}

// MessageStore persists conversation messages.
type MessageStore interface {
	ReadMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error)
	WriteMessages(ctx context.Context, conversationID string, messages []domain.ConversationMessage) error
}

// StoredDocumentRepository tracks uploaded source files through the
// async ingestion pipeline.
type StoredDocumentRepository interface {
	Create(ctx context.Context, doc *domain.StoredDocument) error
	GetByID(ctx context.Context, id string) (*domain.StoredDocument, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ObjectStorage stores raw uploaded document blobs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document indexing jobs.
type MessageQueue interface {
	PublishDocumentIndex(ctx context.Context, documentID string) error
	SubscribeDocumentIndex(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored source file.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.StoredDocument) (string, error)
}

// TokenEstimator prices text for compression accounting. The default
// implementation is the character-based ceil(len/4) estimate.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// SummaryVectorStore indexes and recalls compression summaries for
// long-term memory. Both operations are best effort.
type SummaryVectorStore interface {
	IndexSummary(ctx context.Context, summary domain.MemorySummary, vector []float64) error
	SearchSummaries(ctx context.Context, queryVector []float64, limit int) ([]domain.MemoryHit, error)
}
