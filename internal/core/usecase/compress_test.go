package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

func historyOf(n, tokensEach int) []domain.ConversationMessage {
	messages := make([]domain.ConversationMessage, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		messages = append(messages, domain.ConversationMessage{
			ID:      fmt.Sprintf("m%d", i),
			Role:    role,
			Content: fmt.Sprintf("message %d", i),
			Tokens:  tokensEach,
		})
	}
	return messages
}

func summarizingLLM(summary string) *fakeLLM {
	return &fakeLLM{respond: func(domain.CompletionRequest) (*domain.CompletionResult, error) {
		return textCompletion(summary), nil
	}}
}

func TestShouldCompressThreshold(t *testing.T) {
	c := NewCompressor(summarizingLLM("s"), nil, CompressorConfig{Threshold: 800}, nil)

	if c.ShouldCompress(historyOf(7, 100)) {
		t.Fatalf("700 tokens must not trigger compression at threshold 800")
	}
	if !c.ShouldCompress(historyOf(8, 100)) {
		t.Fatalf("exactly 800 tokens must trigger compression at threshold 800")
	}
	if !c.ShouldCompress(historyOf(9, 100)) {
		t.Fatalf("900 tokens must trigger compression")
	}
}

func TestCompressSelectsThresholdPrefix(t *testing.T) {
	summary := "summary of the early conversation"
	c := NewCompressor(summarizingLLM(summary), nil, CompressorConfig{Threshold: 800}, nil)

	history := historyOf(12, 100)
	out, err := c.Compress(context.Background(), "conv-1", history)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	// The first 8 messages reach the 800-token threshold; 4 survive.
	if len(out) != 5 {
		t.Fatalf("expected 5 messages after compression, got %d", len(out))
	}
	head := out[0]
	if !head.IsSummary || head.Role != domain.RoleSystem {
		t.Fatalf("first message is not a summary: %+v", head)
	}
	if head.Content != summary {
		t.Fatalf("summary content = %q", head.Content)
	}
	if head.SummarizedMessageCount != 8 {
		t.Fatalf("SummarizedMessageCount = %d, want 8", head.SummarizedMessageCount)
	}
	if head.SummarizedTokens != 800 {
		t.Fatalf("SummarizedTokens = %d, want 800", head.SummarizedTokens)
	}
	wantSaved := 800 - domain.EstimateTokensFromText(summary)
	if head.TokensSaved != wantSaved {
		t.Fatalf("TokensSaved = %d, want %d", head.TokensSaved, wantSaved)
	}
	for i, m := range out[1:] {
		if want := fmt.Sprintf("m%d", 8+i); m.ID != want {
			t.Fatalf("survivor %d is %s, want %s", i, m.ID, want)
		}
	}
}

func TestCompressBelowThresholdIsNoop(t *testing.T) {
	llm := summarizingLLM("s")
	c := NewCompressor(llm, nil, CompressorConfig{Threshold: 800}, nil)

	history := historyOf(4, 100)
	out, err := c.Compress(context.Background(), "conv-1", history)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(out) != len(history) {
		t.Fatalf("history changed below threshold")
	}
	if llm.calls != 0 {
		t.Fatalf("model called below threshold")
	}
}

func TestCompressIsIdempotent(t *testing.T) {
	llm := summarizingLLM("short summary")
	c := NewCompressor(llm, nil, CompressorConfig{Threshold: 800}, nil)

	once, err := c.Compress(context.Background(), "conv-1", historyOf(12, 100))
	if err != nil {
		t.Fatalf("first Compress: %v", err)
	}
	callsAfterFirst := llm.calls

	twice, err := c.Compress(context.Background(), "conv-1", once)
	if err != nil {
		t.Fatalf("second Compress: %v", err)
	}
	if llm.calls != callsAfterFirst {
		t.Fatalf("second Compress called the model")
	}
	if len(twice) != len(once) {
		t.Fatalf("second Compress changed the history")
	}
}

func TestCompressSkipsEarlierSummary(t *testing.T) {
	history := []domain.ConversationMessage{
		{ID: "s0", Role: domain.RoleSystem, Content: "old summary", IsSummary: true, Tokens: 50},
	}
	history = append(history, historyOf(12, 100)...)

	c := NewCompressor(summarizingLLM("fresh summary"), nil, CompressorConfig{Threshold: 800}, nil)
	out, err := c.Compress(context.Background(), "conv-1", history)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out[0].ID != "s0" {
		t.Fatalf("earlier summary displaced: %+v", out[0])
	}
	if !out[1].IsSummary || out[1].Content != "fresh summary" {
		t.Fatalf("new summary not placed after the old one: %+v", out[1])
	}
}

func TestCompressPreservesSystemMessagesInSelectedRange(t *testing.T) {
	history := historyOf(12, 100)
	pinned := domain.ConversationMessage{ID: "sys", Role: domain.RoleSystem, Content: "pinned instruction", Tokens: 10}
	history = append(history[:3:3], append([]domain.ConversationMessage{pinned}, history[3:]...)...)

	c := NewCompressor(summarizingLLM("s"), nil, CompressorConfig{Threshold: 800}, nil)
	out, err := c.Compress(context.Background(), "conv-1", history)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	found := false
	for _, m := range out {
		if m.ID == "sys" {
			found = true
		}
	}
	if !found {
		t.Fatalf("system message was summarized away")
	}
	if out[0].SummarizedMessageCount != 8 {
		t.Fatalf("system message counted as eligible: %d", out[0].SummarizedMessageCount)
	}
}

func TestCompressFailureReturnsOriginal(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model offline")}
	c := NewCompressor(llm, nil, CompressorConfig{Threshold: 800}, nil)

	history := historyOf(12, 100)
	out, err := c.Compress(context.Background(), "conv-1", history)
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(out) != len(history) {
		t.Fatalf("failed compression mutated history")
	}
	for i := range out {
		if out[i].ID != history[i].ID {
			t.Fatalf("failed compression reordered history at %d", i)
		}
	}
}

func TestCompressUsesEstimatorForUnpricedMessages(t *testing.T) {
	// 400 characters per message estimates to 100 tokens each.
	content := ""
	for i := 0; i < 400; i++ {
		content += "x"
	}
	history := make([]domain.ConversationMessage, 9)
	for i := range history {
		history[i] = domain.ConversationMessage{ID: fmt.Sprintf("m%d", i), Role: domain.RoleUser, Content: content}
	}

	c := NewCompressor(summarizingLLM("s"), nil, CompressorConfig{Threshold: 800}, nil)
	if !c.ShouldCompress(history) {
		t.Fatalf("estimator-based accounting did not trigger compression")
	}
}
