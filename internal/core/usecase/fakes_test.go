package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

// fakeEmbedder returns canned vectors keyed by exact text. Unknown
// texts get the fallback vector so tests control geometry precisely.
type fakeEmbedder struct {
	vectors  map[string][]float64
	fallback []float64
	err      error

	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// fakeLLM replays a scripted sequence of completions. When respond is
// set it takes precedence and computes the reply per request.
type fakeLLM struct {
	respond func(req domain.CompletionRequest) (*domain.CompletionResult, error)
	script  []*domain.CompletionResult
	err     error

	mu       sync.Mutex
	calls    int
	requests []domain.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	n := f.calls
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(req)
	}
	if f.err != nil {
		return nil, f.err
	}
	if n > len(f.script) {
		return nil, fmt.Errorf("unexpected model call %d", n)
	}
	return f.script[n-1], nil
}

func textCompletion(text string) *domain.CompletionResult {
	return &domain.CompletionResult{
		Blocks: []domain.ContentBlock{{Type: domain.BlockText, Text: text}},
		Usage:  domain.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

type fakeExecutor struct {
	tools   []domain.ToolDefinition
	execute func(name string, args map[string]string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeExecutor) ListTools(context.Context) ([]domain.ToolDefinition, error) {
	return f.tools, nil
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args map[string]string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.execute == nil {
		return "", fmt.Errorf("tool %s not wired", name)
	}
	return f.execute(name, args)
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string][]domain.ConversationMessage
	readErr  error
	writeErr error
	writes   int
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string][]domain.ConversationMessage)}
}

func (f *fakeMessageStore) ReadMessages(_ context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]domain.ConversationMessage(nil), f.messages[conversationID]...), nil
}

func (f *fakeMessageStore) WriteMessages(_ context.Context, conversationID string, messages []domain.ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.messages[conversationID] = append([]domain.ConversationMessage(nil), messages...)
	return nil
}

type fakeIndexStore struct {
	mu       sync.Mutex
	snapshot *domain.IndexSnapshot
	writes   int
}

func (f *fakeIndexStore) ReadIndex(context.Context) (*domain.IndexSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, nil
}

func (f *fakeIndexStore) WriteIndex(_ context.Context, snapshot domain.IndexSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = &snapshot
	f.writes++
	return nil
}

type fakeMemoryStore struct {
	mu        sync.Mutex
	summaries []domain.MemorySummary
	hits      []domain.MemoryHit
}

func (f *fakeMemoryStore) IndexSummary(_ context.Context, summary domain.MemorySummary, _ []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeMemoryStore) SearchSummaries(context.Context, []float64, int) ([]domain.MemoryHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits, nil
}
