package domain

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type ConversationMessage struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`

	// Tokens is the recorded actual input+output usage for this message,
	// zero when unknown.
	Tokens int `json:"tokens,omitempty"`

	IsSummary              bool `json:"is_summary,omitempty"`
	SummarizedMessageCount int  `json:"summarized_message_count,omitempty"`
	SummarizedTokens       int  `json:"summarized_tokens,omitempty"`
	TokensSaved            int  `json:"tokens_saved,omitempty"`
}

// EstimateTokens returns the recorded usage when present, otherwise a
// character-based estimate of ceil(len/4).
func (m ConversationMessage) EstimateTokens() int {
	if m.Tokens > 0 {
		return m.Tokens
	}
	return EstimateTokensFromText(m.Content)
}

func EstimateTokensFromText(text string) int {
	return (len(text) + 3) / 4
}

// MemorySummary is a compressed-history summary indexed for long-term
// recall across conversations.
type MemorySummary struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type MemoryHit struct {
	Summary MemorySummary `json:"summary"`
	Score   float64       `json:"score"`
}
