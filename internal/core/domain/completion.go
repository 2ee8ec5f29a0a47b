package domain

type ContentBlockType string

const (
	BlockText    ContentBlockType = "text"
	BlockToolUse ContentBlockType = "tool_use"
)

// ContentBlock is one ordered element of a model response.
type ContentBlock struct {
	Type    ContentBlockType `json:"type"`
	Text    string           `json:"text,omitempty"`
	ToolUse *ToolUseRequest  `json:"tool_use,omitempty"`
}

type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

type CompletionRequest struct {
	Messages     []ConversationMessage `json:"messages"`
	SystemPrompt string                `json:"system_prompt,omitempty"`
	Tools        []ToolDefinition      `json:"tools,omitempty"`
	Temperature  float64               `json:"temperature"`
	MaxTokens    int                   `json:"max_tokens"`
}

type CompletionResult struct {
	Blocks []ContentBlock `json:"blocks"`
	Usage  TokenUsage     `json:"usage"`
}

// TextContent concatenates the text blocks in order.
func (r CompletionResult) TextContent() string {
	out := ""
	for _, block := range r.Blocks {
		if block.Type == BlockText {
			out += block.Text
		}
	}
	return out
}

// ToolUses returns the tool_use blocks in order.
func (r CompletionResult) ToolUses() []ToolUseRequest {
	out := make([]ToolUseRequest, 0, len(r.Blocks))
	for _, block := range r.Blocks {
		if block.Type == BlockToolUse && block.ToolUse != nil {
			out = append(out, *block.ToolUse)
		}
	}
	return out
}
