// Package extractor routes stored documents to the format-specific
// text extractors.
package extractor

import (
	"context"
	"strings"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

// Selector picks an extractor by MIME type, falling back to the
// filename extension.
type Selector struct {
	plainText ports.TextExtractor
	pdf       ports.TextExtractor
}

func NewSelector(plainText, pdf ports.TextExtractor) *Selector {
	return &Selector{plainText: plainText, pdf: pdf}
}

func (s *Selector) Extract(ctx context.Context, doc *domain.StoredDocument) (string, error) {
	if s.isPDF(doc) {
		return s.pdf.Extract(ctx, doc)
	}
	return s.plainText.Extract(ctx, doc)
}

func (s *Selector) isPDF(doc *domain.StoredDocument) bool {
	if s.pdf == nil {
		return false
	}
	if strings.EqualFold(doc.MimeType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.Filename), ".pdf")
}
