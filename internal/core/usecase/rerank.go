package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

const (
	// DefaultRerankFallbackScore is assigned when the model's score
	// cannot be obtained or parsed; a conservative middle-low value
	// keeps the candidate in play instead of discarding it.
	DefaultRerankFallbackScore = 0.3

	defaultRerankConcurrency = 4
)

// Reranker scores stage-1 candidates with a deterministic LLM prompt.
// Candidates are scored concurrently and recombined by position, so the
// output order never depends on completion order.
type Reranker struct {
	llm           ports.LLMGateway
	FallbackScore float64
	Concurrency   int
}

func NewReranker(llm ports.LLMGateway) *Reranker {
	return &Reranker{
		llm:           llm,
		FallbackScore: DefaultRerankFallbackScore,
		Concurrency:   defaultRerankConcurrency,
	}
}

func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.SearchResult) ([]domain.SearchResult, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(candidates) {
		concurrency = len(candidates)
	}

	out := make([]domain.SearchResult, len(candidates))
	copy(out, candidates)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			score := r.scoreCandidate(ctx, query, out[i].Chunk.Content)
			out[i].RerankScore = &score
		}(i)
	}
	wg.Wait()

	return out, nil
}

// scoreCandidate asks for a single relevance number and falls back to
// the conservative score on any gateway or parse failure.
func (r *Reranker) scoreCandidate(ctx context.Context, query, content string) float64 {
	result, err := r.llm.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.ConversationMessage{{
			Role:    domain.RoleUser,
			Content: buildRerankPrompt(query, content),
		}},
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		slog.Warn("rerank_score_fallback", "error", err)
		return r.FallbackScore
	}

	score, ok := parseRerankScore(result.TextContent())
	if !ok {
		slog.Warn("rerank_score_unparseable", "response", result.TextContent())
		return r.FallbackScore
	}
	return score
}

func buildRerankPrompt(query, content string) string {
	return fmt.Sprintf(`Rate how relevant the following passage is to the query.
Respond with a single number between 0 and 1 and nothing else.

Query:
%s

Passage:
%s
`, query, content)
}

// parseRerankScore takes the first whitespace-delimited numeric token
// and clamps it to [0,1].
func parseRerankScore(raw string) (float64, bool) {
	for _, token := range strings.Fields(raw) {
		token = strings.Trim(token, ".,;:")
		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		if value < 0 {
			value = 0
		}
		if value > 1 {
			value = 1
		}
		return value, true
	}
	return 0, false
}
