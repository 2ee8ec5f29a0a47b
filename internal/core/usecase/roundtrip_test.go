package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/infrastructure/chunking"
)

// histogramEmbedder maps text to its lowercase letter frequency vector,
// giving deterministic embeddings where lexically similar texts land
// close together.
type histogramEmbedder struct{}

func (histogramEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

func (e histogramEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Indexes a real multi-kilobyte document through the window chunker and
// checks that querying with its opening sentence surfaces the opening
// chunk first.
func TestChunkEmbedSearchRoundTrip(t *testing.T) {
	opening := "galaxies collide and merge over eons. "
	filler := "buzzing quartz whirrs off key. "
	content := strings.Repeat(opening, 14) + strings.Repeat(filler, 48)
	if len(content) < 2000 {
		t.Fatalf("document too short for a multi-chunk split: %d chars", len(content))
	}

	index := NewIndexUseCase(chunking.New(500, 50), histogramEmbedder{})
	doc, err := index.AddDocument(context.Background(), "cosmology notes", content, nil)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if got := len(index.Embeddings()); got < 4 {
		t.Fatalf("expected at least 4 chunks for %d chars, got %d", len(content), got)
	}

	uc := NewRetrievalUseCase(index, histogramEmbedder{}, nil)
	results, err := uc.Search(context.Background(), strings.TrimSpace(opening), domain.DefaultSearchConfig())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("no results for the document's own opening sentence")
	}

	top := results[0]
	if top.Chunk.DocumentID != doc.ID {
		t.Fatalf("top result from document %q, want %q", top.Chunk.DocumentID, doc.ID)
	}
	if top.Chunk.ChunkIndex != 0 {
		t.Fatalf("opening sentence matched chunk %d, want the opening chunk", top.Chunk.ChunkIndex)
	}
	if top.Similarity <= 0.9 {
		t.Fatalf("opening chunk similarity = %v, want > 0.9", top.Similarity)
	}
	if len(results) > 1 && results[1].Similarity > top.Similarity {
		t.Fatalf("results not ordered by similarity: %v then %v", top.Similarity, results[1].Similarity)
	}
}
