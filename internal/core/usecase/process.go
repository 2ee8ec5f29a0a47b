package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

// ProcessDocumentUseCase drains one queued indexing job: extract text
// from the stored blob and feed it to the index. Failures are recorded
// on the document so the API can report them.
type ProcessDocumentUseCase struct {
	repo      ports.StoredDocumentRepository
	extractor ports.TextExtractor
	indexer   ports.DocumentIndexer
}

func NewProcessDocumentUseCase(
	repo ports.StoredDocumentRepository,
	extractor ports.TextExtractor,
	indexer ports.DocumentIndexer,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		indexer:   indexer,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("document %s has no extractable text", doc.Filename)
	}

	metadata := map[string]string{
		domain.MetadataSourcePath: doc.StoragePath,
	}
	if _, err := uc.indexer.IndexDocument(ctx, doc.Filename, text, metadata); err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}
