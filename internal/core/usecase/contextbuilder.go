package usecase

import (
	"fmt"
	"strings"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

// BuildContext renders ranked results into a citation-annotated prompt
// fragment. Pure function of its inputs; empty results produce an
// empty string so callers fall back to unaugmented generation.
func BuildContext(results []domain.SearchResult, metadataFor func(documentID string) map[string]string) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant context from the knowledge base:\n\n")
	for i, result := range results {
		title := result.DocumentTitle
		if title == "" {
			title = result.Chunk.DocumentID
		}

		b.WriteString(fmt.Sprintf("[Source %d] %s (chunk %d, similarity %.3f", i+1, title, result.Chunk.ChunkIndex, result.Similarity))
		if result.RerankScore != nil {
			b.WriteString(fmt.Sprintf(", rerank %.3f", *result.RerankScore))
		}
		b.WriteString(")\n")
		b.WriteString(result.Chunk.Content)
		b.WriteString("\n")
		b.WriteString(citationLine(i+1, title, metadataFor(result.Chunk.DocumentID)))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// citationLine prefers a markdown link to the document's URL or source
// path and degrades to a plain source label.
func citationLine(n int, title string, metadata map[string]string) string {
	if metadata != nil {
		if url := strings.TrimSpace(metadata[domain.MetadataURL]); url != "" {
			return fmt.Sprintf("Citation: [%s](%s)", title, url)
		}
		if path := strings.TrimSpace(metadata[domain.MetadataSourcePath]); path != "" {
			return fmt.Sprintf("Citation: [%s](%s)", title, path)
		}
	}
	return fmt.Sprintf("Citation: Source %d", n)
}
