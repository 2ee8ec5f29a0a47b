package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

type chatFake struct {
	deltas []domain.Delta
	err    error

	lastConversationID string
	lastMessage        string
}

func (f *chatFake) Turn(_ context.Context, conversationID, userMessage string) (<-chan domain.Delta, error) {
	f.lastConversationID = conversationID
	f.lastMessage = userMessage
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan domain.Delta, len(f.deltas))
	for _, d := range f.deltas {
		out <- d
	}
	close(out)
	return out, nil
}

type indexerFake struct {
	docs    []domain.Document
	indexed *domain.Document
	removed map[string]bool
	err     error
}

func (f *indexerFake) IndexDocument(_ context.Context, title, content string, metadata map[string]string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := &domain.Document{
		ID:        "doc-1",
		Title:     title,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	f.indexed = doc
	return doc, nil
}

func (f *indexerFake) RemoveDocument(_ context.Context, documentID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.removed[documentID], nil
}

func (f *indexerFake) ListDocuments(_ context.Context) []domain.Document {
	return f.docs
}

type ingestFake struct {
	err error
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.StoredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.StoredDocument{
		ID:          "stored-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "stored-1_" + filename,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type storedRepoFake struct {
	docs map[string]*domain.StoredDocument
}

func (f *storedRepoFake) Create(_ context.Context, _ *domain.StoredDocument) error { return nil }

func (f *storedRepoFake) GetByID(_ context.Context, id string) (*domain.StoredDocument, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get stored document", domain.ErrDocumentNotFound)
	}
	return doc, nil
}

func (f *storedRepoFake) UpdateStatus(_ context.Context, _ string, _ domain.DocumentStatus, _ string) error {
	return nil
}

func newTestHandler(cfg Config, chat *chatFake, indexer *indexerFake, ingest *ingestFake, repo *storedRepoFake) http.Handler {
	if chat == nil {
		chat = &chatFake{}
	}
	if indexer == nil {
		indexer = &indexerFake{}
	}
	if ingest == nil {
		ingest = &ingestFake{}
	}
	if repo == nil {
		repo = &storedRepoFake{docs: map[string]*domain.StoredDocument{}}
	}
	return NewRouter(chat, indexer, ingest, repo, nil, cfg, nil).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(Config{}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected %s header on every response", requestIDHeader)
	}
}

func TestChatTurnStreamsSSE(t *testing.T) {
	chat := &chatFake{
		deltas: []domain.Delta{
			{Type: domain.DeltaText, Text: "hello"},
			{Type: domain.DeltaUsage, Usage: &domain.TokenUsage{InputTokens: 10, OutputTokens: 5}},
			{Type: domain.DeltaComplete, Complete: &domain.TurnResult{Iterations: 1}},
		},
	}
	handler := newTestHandler(Config{}, chat, nil, nil, nil)

	body := strings.NewReader(`{"conversation_id":"conv-1","message":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", got)
	}
	if chat.lastConversationID != "conv-1" || chat.lastMessage != "hi" {
		t.Fatalf("turn called with (%q, %q)", chat.lastConversationID, chat.lastMessage)
	}

	raw := res.Body.String()
	if !strings.Contains(raw, `"type":"text"`) || !strings.Contains(raw, `"text":"hello"`) {
		t.Fatalf("expected text delta in stream, got %s", raw)
	}
	if !strings.HasSuffix(raw, "data: [DONE]\n\n") {
		t.Fatalf("expected [DONE] terminator, got %s", raw)
	}
}

func TestChatTurnRejectsMissingConversationID(t *testing.T) {
	handler := newTestHandler(Config{}, nil, nil, nil, nil)

	body := strings.NewReader(`{"message":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatTurnMapsInvalidInputTo400(t *testing.T) {
	chat := &chatFake{err: domain.WrapError(domain.ErrInvalidInput, "chat turn", domain.ErrInvalidInput)}
	handler := newTestHandler(Config{}, chat, nil, nil, nil)

	body := strings.NewReader(`{"conversation_id":"conv-1","message":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	handler := newTestHandler(Config{}, nil, nil, nil, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "stored-1" {
		t.Fatalf("expected stored document id, got %v", resp["id"])
	}
	if resp["status"] != string(domain.StatusUploaded) {
		t.Fatalf("expected uploaded status, got %v", resp["status"])
	}
}

func TestUploadDocumentRequiresFileField(t *testing.T) {
	handler := newTestHandler(Config{}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("not multipart"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestIndexTextCreatesDocument(t *testing.T) {
	indexer := &indexerFake{}
	handler := newTestHandler(Config{}, nil, indexer, nil, nil)

	body := strings.NewReader(`{"title":"Notes","content":"some text","metadata":{"url":"https://example.com"}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/text", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if indexer.indexed == nil || indexer.indexed.Title != "Notes" {
		t.Fatalf("expected document indexed, got %+v", indexer.indexed)
	}
	if indexer.indexed.Metadata["url"] != "https://example.com" {
		t.Fatalf("expected metadata forwarded, got %v", indexer.indexed.Metadata)
	}
}

func TestIndexTextMapsValidationError(t *testing.T) {
	indexer := &indexerFake{err: domain.WrapError(domain.ErrInvalidInput, "index document", domain.ErrInvalidInput)}
	handler := newTestHandler(Config{}, nil, indexer, nil, nil)

	body := strings.NewReader(`{"title":"","content":""}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/text", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListDocuments(t *testing.T) {
	indexer := &indexerFake{docs: []domain.Document{{ID: "a"}, {ID: "b"}}}
	handler := newTestHandler(Config{}, nil, indexer, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 documents, got %d", resp.Count)
	}
}

func TestRemoveDocument(t *testing.T) {
	indexer := &indexerFake{removed: map[string]bool{"doc-1": true}}
	handler := newTestHandler(Config{}, nil, indexer, nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/documents/ghost", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown document, got %d", res.Code)
	}
}

func TestGetStoredDocumentStatus(t *testing.T) {
	repo := &storedRepoFake{docs: map[string]*domain.StoredDocument{
		"stored-1": {ID: "stored-1", Status: domain.StatusIndexed},
	}}
	handler := newTestHandler(Config{}, nil, nil, nil, repo)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/stored-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/ghost", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown document, got %d", res.Code)
	}
}
