package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

// IndexUseCase owns the in-memory RAG index. Mutations are serialized
// behind a write lock; searches read concurrently against the
// last-committed state.
type IndexUseCase struct {
	chunker  ports.Chunker
	embedder ports.EmbeddingGateway

	mu        sync.RWMutex
	documents []domain.Document
	chunks    []domain.ChunkEmbedding
	dimension int
	updatedAt time.Time
}

func NewIndexUseCase(chunker ports.Chunker, embedder ports.EmbeddingGateway) *IndexUseCase {
	return &IndexUseCase{
		chunker:  chunker,
		embedder: embedder,
	}
}

// AddDocument chunks and embeds the content with one batched gateway
// call, then appends document and embeddings atomically. A gateway
// failure leaves the index untouched.
func (uc *IndexUseCase) AddDocument(ctx context.Context, title, content string, metadata map[string]string) (*domain.Document, error) {
	doc := domain.Document{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	chunks, err := uc.chunker.Chunk(content, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}

	embeddings := make([]domain.ChunkEmbedding, 0, len(chunks))
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}
		vectors, err := uc.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed document chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "embed document chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
		}
		for i, chunk := range chunks {
			embeddings = append(embeddings, domain.ChunkEmbedding{
				ChunkID:    chunk.ID,
				DocumentID: doc.ID,
				Content:    chunk.Content,
				Embedding:  vectors[i],
				ChunkIndex: chunk.ChunkIndex,
			})
		}
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := uc.validateDimensionLocked(embeddings); err != nil {
		return nil, err
	}
	uc.documents = append(uc.documents, doc)
	uc.chunks = append(uc.chunks, embeddings...)
	uc.updatedAt = time.Now().UTC()
	return &doc, nil
}

// validateDimensionLocked enforces uniform embedding dimensionality
// across the whole index. The offending mutation is rejected; prior
// state is kept.
func (uc *IndexUseCase) validateDimensionLocked(embeddings []domain.ChunkEmbedding) error {
	dim := uc.dimension
	for _, e := range embeddings {
		if len(e.Embedding) == 0 {
			return domain.WrapError(domain.ErrDimensionMismatch, "validate embeddings",
				fmt.Errorf("chunk %s has empty embedding", e.ChunkID))
		}
		if dim == 0 {
			dim = len(e.Embedding)
			continue
		}
		if len(e.Embedding) != dim {
			return domain.WrapError(domain.ErrDimensionMismatch, "validate embeddings",
				fmt.Errorf("chunk %s has dimension %d, index has %d", e.ChunkID, len(e.Embedding), dim))
		}
	}
	uc.dimension = dim
	return nil
}

// RemoveDocument deletes the document and cascades to every embedding
// that references it.
func (uc *IndexUseCase) RemoveDocument(_ context.Context, documentID string) (bool, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	found := false
	docs := uc.documents[:0]
	for _, doc := range uc.documents {
		if doc.ID == documentID {
			found = true
			continue
		}
		docs = append(docs, doc)
	}
	if !found {
		return false, nil
	}
	uc.documents = docs

	chunks := uc.chunks[:0]
	for _, chunk := range uc.chunks {
		if chunk.DocumentID == documentID {
			continue
		}
		chunks = append(chunks, chunk)
	}
	uc.chunks = chunks
	if len(uc.chunks) == 0 {
		uc.dimension = 0
	}
	uc.updatedAt = time.Now().UTC()
	return true, nil
}

func (uc *IndexUseCase) ListDocuments(_ context.Context) []domain.Document {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return append([]domain.Document(nil), uc.documents...)
}

// Embeddings returns a read snapshot of the chunk embeddings for
// similarity scoring.
func (uc *IndexUseCase) Embeddings() []domain.ChunkEmbedding {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return append([]domain.ChunkEmbedding(nil), uc.chunks...)
}

// DocumentTitle resolves a document title for result annotation.
func (uc *IndexUseCase) DocumentTitle(documentID string) string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	for _, doc := range uc.documents {
		if doc.ID == documentID {
			return doc.Title
		}
	}
	return ""
}

// DocumentMetadata resolves a document's metadata for citations.
func (uc *IndexUseCase) DocumentMetadata(documentID string) map[string]string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	for _, doc := range uc.documents {
		if doc.ID == documentID {
			return doc.Metadata
		}
	}
	return nil
}

func (uc *IndexUseCase) Snapshot() domain.IndexSnapshot {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return domain.IndexSnapshot{
		Documents:   append([]domain.Document(nil), uc.documents...),
		Embeddings:  append([]domain.ChunkEmbedding(nil), uc.chunks...),
		LastUpdated: uc.updatedAt,
	}
}

// Restore replaces the index state with a persisted snapshot after
// validating referential integrity and dimensionality.
func (uc *IndexUseCase) Restore(snapshot domain.IndexSnapshot) error {
	known := make(map[string]struct{}, len(snapshot.Documents))
	for _, doc := range snapshot.Documents {
		known[doc.ID] = struct{}{}
	}
	for _, chunk := range snapshot.Embeddings {
		if _, ok := known[chunk.DocumentID]; !ok {
			return domain.WrapError(domain.ErrInvalidInput, "restore index",
				fmt.Errorf("embedding %s references unknown document %s", chunk.ChunkID, chunk.DocumentID))
		}
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	prevDim := uc.dimension
	uc.dimension = 0
	if err := uc.validateDimensionLocked(snapshot.Embeddings); err != nil {
		uc.dimension = prevDim
		return err
	}
	uc.documents = append([]domain.Document(nil), snapshot.Documents...)
	uc.chunks = append([]domain.ChunkEmbedding(nil), snapshot.Embeddings...)
	uc.updatedAt = snapshot.LastUpdated
	return nil
}
