package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

// DefaultMaxIterations bounds the model-call/tool-execution cycle of a
// single turn.
const DefaultMaxIterations = 10

// ToolLoop drives the agentic cycle: call the model, execute any tool
// uses it requests, feed results back, repeat until the model answers
// with plain text or the iteration cap trips.
type ToolLoop struct {
	llm      ports.LLMGateway
	executor ports.ToolExecutor
	maxIter  int
	log      *slog.Logger
}

func NewToolLoop(llm ports.LLMGateway, executor ports.ToolExecutor, maxIterations int, log *slog.Logger) *ToolLoop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if log == nil {
		log = slog.Default()
	}
	return &ToolLoop{llm: llm, executor: executor, maxIter: maxIterations, log: log}
}

// Run executes a full turn over the given history. Deltas are streamed
// on the returned channel; the channel closes after a terminal
// DeltaComplete or DeltaError. The transcript inside TurnResult holds
// only messages appended by this run.
func (l *ToolLoop) Run(ctx context.Context, messages []domain.ConversationMessage, systemPrompt string, tools []domain.ToolDefinition) <-chan domain.Delta {
	out := make(chan domain.Delta, 16)
	go func() {
		defer close(out)
		l.run(ctx, messages, systemPrompt, tools, out)
	}()
	return out
}

func (l *ToolLoop) run(ctx context.Context, history []domain.ConversationMessage, systemPrompt string, tools []domain.ToolDefinition, out chan<- domain.Delta) {
	working := make([]domain.ConversationMessage, len(history))
	copy(working, history)

	result := domain.TurnResult{}

	for iter := 0; iter < l.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			emitError(ctx, out, domain.WrapError(domain.ErrTemporary, "tool loop", err))
			return
		}
		result.Iterations = iter + 1

		completion, err := l.llm.Complete(ctx, domain.CompletionRequest{
			Messages:     working,
			SystemPrompt: systemPrompt,
			Tools:        tools,
		})
		if err != nil {
			emitError(ctx, out, domain.WrapError(domain.ErrGatewayUnavailable, "model call", err))
			return
		}

		result.Usage.InputTokens += completion.Usage.InputTokens
		result.Usage.OutputTokens += completion.Usage.OutputTokens
		if !emit(ctx, out, domain.Delta{Type: domain.DeltaUsage, Usage: &completion.Usage}) {
			return
		}

		text := completion.TextContent()
		if text != "" {
			if !emit(ctx, out, domain.Delta{Type: domain.DeltaText, Text: text}) {
				return
			}
		}

		toolUses := completion.ToolUses()
		assistant := domain.ConversationMessage{
			Role:    domain.RoleAssistant,
			Content: text,
			Tokens:  completion.Usage.Total(),
		}

		if len(toolUses) == 0 {
			working = append(working, assistant)
			result.Messages = append(result.Messages, assistant)
			result.HitLimit = false
			emitComplete(ctx, out, result)
			return
		}

		// The assistant message and the tool results commit together so
		// the transcript never records a request without its outcome.
		results := make([]domain.ToolResult, 0, len(toolUses))
		for i := range toolUses {
			use := &toolUses[i]
			if !emit(ctx, out, domain.Delta{Type: domain.DeltaToolCall, ToolCall: use}) {
				return
			}
			results = append(results, l.execute(ctx, use))
			result.ToolCalls++
		}

		working = append(working, assistant)
		result.Messages = append(result.Messages, assistant)

		resultMsg := toolResultsMessage(results)
		working = append(working, resultMsg)
		result.Messages = append(result.Messages, resultMsg)
	}

	l.log.Warn("tool loop hit iteration limit", "max_iterations", l.maxIter)
	result.HitLimit = true
	emitComplete(ctx, out, result)
}

// execute runs one tool call. Executor failures become error-flagged
// results handed back to the model rather than aborting the turn.
func (l *ToolLoop) execute(ctx context.Context, use *domain.ToolUseRequest) domain.ToolResult {
	output, err := l.executor.Execute(ctx, use.Name, domain.CoerceArguments(use.Input))
	if err != nil {
		l.log.Warn("tool execution failed", "tool", use.Name, "error", err)
		return domain.ToolResult{
			ToolUseID: use.ID,
			Content:   fmt.Sprintf("tool %s failed: %v", use.Name, err),
			IsError:   true,
		}
	}
	return domain.ToolResult{ToolUseID: use.ID, Content: output}
}

// toolResultsMessage folds a batch of tool results into one user-role
// message for the next model call.
func toolResultsMessage(results []domain.ToolResult) domain.ConversationMessage {
	var content string
	for i, r := range results {
		if i > 0 {
			content += "\n"
		}
		if r.IsError {
			content += fmt.Sprintf("[tool_result %s error] %s", r.ToolUseID, r.Content)
		} else {
			content += fmt.Sprintf("[tool_result %s] %s", r.ToolUseID, r.Content)
		}
	}
	return domain.ConversationMessage{Role: domain.RoleUser, Content: content}
}

func emit(ctx context.Context, out chan<- domain.Delta, d domain.Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func emitComplete(ctx context.Context, out chan<- domain.Delta, result domain.TurnResult) {
	emit(ctx, out, domain.Delta{Type: domain.DeltaComplete, Complete: &result})
}

func emitError(ctx context.Context, out chan<- domain.Delta, err error) {
	emit(ctx, out, domain.Delta{Type: domain.DeltaError, Err: err.Error()})
}
