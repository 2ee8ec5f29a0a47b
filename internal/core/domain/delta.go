package domain

type DeltaType string

const (
	DeltaText     DeltaType = "text"
	DeltaToolCall DeltaType = "tool_call"
	DeltaUsage    DeltaType = "usage"
	DeltaComplete DeltaType = "complete"
	DeltaError    DeltaType = "error"
)

// Delta is one element of the per-turn stream delivered to the caller.
// Exactly one payload field is set, selected by Type.
type Delta struct {
	Type     DeltaType       `json:"type"`
	Text     string          `json:"text,omitempty"`
	ToolCall *ToolUseRequest `json:"tool_call,omitempty"`
	Usage    *TokenUsage     `json:"usage,omitempty"`
	Complete *TurnResult     `json:"complete,omitempty"`
	Err      string          `json:"error,omitempty"`
}

// TurnResult carries the committed conversation state at the end of a
// tool loop run.
type TurnResult struct {
	Messages      []ConversationMessage `json:"messages"`
	Iterations    int                   `json:"iterations"`
	ToolCalls     int                   `json:"tool_calls"`
	Usage         TokenUsage            `json:"usage"`
	HitLimit      bool                  `json:"hit_iteration_limit,omitempty"`
	ContextChunks int                   `json:"context_chunks,omitempty"`
}
