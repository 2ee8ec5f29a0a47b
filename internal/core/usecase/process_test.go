package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

type fakeTextExtractor struct {
	text string
	err  error
}

func (f *fakeTextExtractor) Extract(context.Context, *domain.StoredDocument) (string, error) {
	return f.text, f.err
}

type fakeIndexer struct {
	indexed []string
	err     error
}

func (f *fakeIndexer) IndexDocument(_ context.Context, title, content string, _ map[string]string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.indexed = append(f.indexed, title)
	return &domain.Document{ID: "indexed-" + title, Title: title, Content: content, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeIndexer) RemoveDocument(context.Context, string) (bool, error) { return false, nil }

func (f *fakeIndexer) ListDocuments(context.Context) []domain.Document { return nil }

func seedStoredDocument(repo *fakeStoredDocumentRepo) *domain.StoredDocument {
	doc := &domain.StoredDocument{
		ID:          "doc-1",
		Filename:    "notes.txt",
		MimeType:    "text/plain",
		StoragePath: "doc-1_notes.txt",
		Status:      domain.StatusUploaded,
	}
	repo.docs[doc.ID] = doc
	return doc
}

func TestProcessByIDIndexesDocument(t *testing.T) {
	repo := newFakeStoredDocumentRepo()
	seedStoredDocument(repo)
	indexer := &fakeIndexer{}
	uc := NewProcessDocumentUseCase(repo, &fakeTextExtractor{text: "extracted body"}, indexer)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID: %v", err)
	}
	if len(indexer.indexed) != 1 || indexer.indexed[0] != "notes.txt" {
		t.Fatalf("document not indexed: %v", indexer.indexed)
	}
	want := []domain.DocumentStatus{domain.StatusProcessing, domain.StatusIndexed}
	if len(repo.statuses) != 2 || repo.statuses[0] != want[0] || repo.statuses[1] != want[1] {
		t.Fatalf("status transitions = %v, want %v", repo.statuses, want)
	}
}

func TestProcessByIDMarksFailureOnExtractError(t *testing.T) {
	repo := newFakeStoredDocumentRepo()
	doc := seedStoredDocument(repo)
	uc := NewProcessDocumentUseCase(repo, &fakeTextExtractor{err: errors.New("corrupt file")}, &fakeIndexer{})

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected extraction error")
	}
	if doc.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", doc.Status)
	}
	if doc.Error == "" {
		t.Fatalf("failure reason not recorded")
	}
}

func TestProcessByIDRejectsEmptyText(t *testing.T) {
	repo := newFakeStoredDocumentRepo()
	doc := seedStoredDocument(repo)
	uc := NewProcessDocumentUseCase(repo, &fakeTextExtractor{text: "   \n"}, &fakeIndexer{})

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected empty text error")
	}
	if doc.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", doc.Status)
	}
}

func TestProcessByIDUnknownDocument(t *testing.T) {
	repo := newFakeStoredDocumentRepo()
	uc := NewProcessDocumentUseCase(repo, &fakeTextExtractor{text: "x"}, &fakeIndexer{})

	err := uc.ProcessByID(context.Background(), "ghost")
	if err == nil {
		t.Fatalf("expected not found error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
