package ports

import (
	"context"
	"io"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

// ChatService is the inbound contract for one user turn: a stream of
// deltas (text, tool calls, usage, completion) consumed by the caller.
type ChatService interface {
	Turn(ctx context.Context, conversationID, userMessage string) (<-chan domain.Delta, error)
}

// DocumentIndexer is the inbound contract for synchronous document
// management against the RAG index.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, title, content string, metadata map[string]string) (*domain.Document, error)
	RemoveDocument(ctx context.Context, documentID string) (bool, error)
	ListDocuments(ctx context.Context) []domain.Document
}

// DocumentIngestor is the inbound contract for async file uploads.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.StoredDocument, error)
}

// DocumentProcessor drains one queued ingestion job.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
