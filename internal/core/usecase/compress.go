package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

const (
	// DefaultCompressionThreshold is the token budget above which older
	// history is folded into a summary message.
	DefaultCompressionThreshold = 800

	defaultSummaryMaxTokens = 512
)

// CompressorConfig tunes the history compressor.
type CompressorConfig struct {
	Threshold        int
	SummaryMaxTokens int
}

// Compressor folds the oldest stretch of conversation history into a
// single summary message once the accumulated token count crosses the
// threshold. Already-produced summaries are never re-summarized.
type Compressor struct {
	llm       ports.LLMGateway
	estimator ports.TokenEstimator
	cfg       CompressorConfig
	log       *slog.Logger
}

// charEstimator is the fallback token estimator: one token per four
// characters, rounded up.
type charEstimator struct{}

func (charEstimator) EstimateTokens(text string) int { return domain.EstimateTokensFromText(text) }

func NewCompressor(llm ports.LLMGateway, estimator ports.TokenEstimator, cfg CompressorConfig, log *slog.Logger) *Compressor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultCompressionThreshold
	}
	if cfg.SummaryMaxTokens <= 0 {
		cfg.SummaryMaxTokens = defaultSummaryMaxTokens
	}
	if estimator == nil {
		estimator = charEstimator{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Compressor{llm: llm, estimator: estimator, cfg: cfg, log: log}
}

// ShouldCompress reports whether the eligible history has reached the
// configured token threshold. Eligible messages are user and assistant
// turns after the most recent summary.
func (c *Compressor) ShouldCompress(messages []domain.ConversationMessage) bool {
	total := 0
	for _, m := range messages[c.boundary(messages):] {
		if eligibleForCompression(m) {
			total += c.tokens(m)
		}
	}
	return total >= c.cfg.Threshold
}

// Compress replaces the oldest eligible messages with a single summary
// message. The selected stretch is the shortest prefix of eligible
// messages whose cumulative token count reaches the threshold. On any
// failure the original slice is returned unchanged alongside the error.
// Calling Compress on already-compressed history is a no-op.
func (c *Compressor) Compress(ctx context.Context, conversationID string, messages []domain.ConversationMessage) ([]domain.ConversationMessage, error) {
	if !c.ShouldCompress(messages) {
		return messages, nil
	}

	boundary := c.boundary(messages)

	var (
		selected       []domain.ConversationMessage
		cut            = boundary
		selectedTokens int
	)
	for i := boundary; i < len(messages); i++ {
		if !eligibleForCompression(messages[i]) {
			continue
		}
		selected = append(selected, messages[i])
		selectedTokens += c.tokens(messages[i])
		cut = i + 1
		if selectedTokens >= c.cfg.Threshold {
			break
		}
	}
	if len(selected) == 0 {
		return messages, nil
	}

	summary, err := c.summarize(ctx, selected)
	if err != nil {
		return messages, domain.WrapError(domain.ErrGatewayUnavailable, "compress history", err)
	}

	summaryTokens := c.estimator.EstimateTokens(summary)
	summaryMsg := domain.ConversationMessage{
		ID:                     uuid.NewString(),
		ConversationID:         conversationID,
		CreatedAt:              time.Now().UTC(),
		Role:                   domain.RoleSystem,
		Content:                summary,
		Tokens:                 summaryTokens,
		IsSummary:              true,
		SummarizedMessageCount: len(selected),
		SummarizedTokens:       selectedTokens,
		TokensSaved:            selectedTokens - summaryTokens,
	}

	rebuilt := make([]domain.ConversationMessage, 0, len(messages)-len(selected)+1)
	rebuilt = append(rebuilt, messages[:boundary]...)
	rebuilt = append(rebuilt, summaryMsg)
	for i := boundary; i < cut; i++ {
		if !eligibleForCompression(messages[i]) {
			rebuilt = append(rebuilt, messages[i])
		}
	}
	rebuilt = append(rebuilt, messages[cut:]...)

	c.log.Info("history compressed",
		"conversation_id", conversationID,
		"messages", len(selected),
		"tokens_before", selectedTokens,
		"tokens_after", summaryTokens,
	)
	return rebuilt, nil
}

// boundary returns the index just past the most recent summary message.
func (c *Compressor) boundary(messages []domain.ConversationMessage) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsSummary {
			return i + 1
		}
	}
	return 0
}

func (c *Compressor) tokens(m domain.ConversationMessage) int {
	if m.Tokens > 0 {
		return m.Tokens
	}
	return c.estimator.EstimateTokens(m.Content)
}

func eligibleForCompression(m domain.ConversationMessage) bool {
	if m.IsSummary {
		return false
	}
	return m.Role == domain.RoleUser || m.Role == domain.RoleAssistant
}

func (c *Compressor) summarize(ctx context.Context, messages []domain.ConversationMessage) (string, error) {
	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	req := domain.CompletionRequest{
		Messages: []domain.ConversationMessage{{
			Role: domain.RoleUser,
			Content: fmt.Sprintf(
				"Summarize the following conversation excerpt. Preserve decisions, facts, names and open questions. Be concise.\n\n%s",
				transcript.String(),
			),
		}},
		Temperature: 0,
		MaxTokens:   c.cfg.SummaryMaxTokens,
	}
	result, err := c.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(result.TextContent())
	if summary == "" {
		return "", fmt.Errorf("empty summary from model")
	}
	return summary, nil
}
