package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is immutable once created; the index owns the only copy.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Well-known metadata keys used for citation links.
const (
	MetadataURL        = "url"
	MetadataSourcePath = "source_path"
)

type TextChunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Content     string `json:"content"`
	ChunkIndex  int    `json:"chunk_index"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

type ChunkEmbedding struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Embedding  []float64 `json:"embedding"`
	ChunkIndex int       `json:"chunk_index"`
}

// IndexSnapshot is the serializable state of the RAG index. Every
// ChunkEmbedding.DocumentID references a document in Documents.
type IndexSnapshot struct {
	Documents   []Document       `json:"documents"`
	Embeddings  []ChunkEmbedding `json:"embeddings"`
	LastUpdated time.Time        `json:"last_updated"`
}

// StoredDocument tracks an uploaded source file through the async
// ingestion pipeline (blob storage -> worker -> index).
type StoredDocument struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
