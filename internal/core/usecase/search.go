package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

// RetrievalUseCase runs the two-stage search pipeline: cosine
// similarity over every chunk embedding, then an optional LLM rerank of
// the best candidates.
type RetrievalUseCase struct {
	index    *IndexUseCase
	embedder ports.EmbeddingGateway
	reranker *Reranker
}

func NewRetrievalUseCase(index *IndexUseCase, embedder ports.EmbeddingGateway, reranker *Reranker) *RetrievalUseCase {
	return &RetrievalUseCase{
		index:    index,
		embedder: embedder,
		reranker: reranker,
	}
}

// Search returns at most config.TopK results ordered most relevant
// first. An empty index or an empty post-filter set is a valid outcome,
// not an error.
func (uc *RetrievalUseCase) Search(ctx context.Context, query string, config domain.SearchConfig) ([]domain.SearchResult, error) {
	config = config.Normalized()

	chunks := uc.index.Embeddings()
	if len(chunks) == 0 {
		return []domain.SearchResult{}, nil
	}

	queryVector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := make([]domain.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		similarity := CosineSimilarity(queryVector, chunk.Embedding)
		if similarity < config.MinSimilarity {
			continue
		}
		candidates = append(candidates, domain.SearchResult{
			Chunk:         chunk,
			Similarity:    similarity,
			DocumentTitle: uc.index.DocumentTitle(chunk.DocumentID),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if !config.EnableReranking || uc.reranker == nil {
		return trimResults(candidates, config.TopK), nil
	}

	candidates = trimResults(candidates, config.RerankTopN)
	reranked, err := uc.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}

	filtered := reranked[:0]
	for _, result := range reranked {
		if result.RerankScore != nil && *result.RerankScore < config.MinRerankScore {
			continue
		}
		filtered = append(filtered, result)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return finalScore(filtered[i], config) > finalScore(filtered[j], config)
	})
	return trimResults(filtered, config.TopK), nil
}

func finalScore(result domain.SearchResult, config domain.SearchConfig) float64 {
	rerank := 0.0
	if result.RerankScore != nil {
		rerank = *result.RerankScore
	}
	if config.UseHybridScoring {
		return result.Similarity*config.SimilarityWeight + rerank*config.RerankWeight
	}
	return rerank
}

func trimResults(results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

// CosineSimilarity is dot(a,b)/(|a||b|), defined as 0 when either norm
// is zero or the dimensions differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
