package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

const memoryRecallLimit = 3

// Orchestrator coordinates one user turn end to end: history load,
// compression, retrieval, context assembly, the tool loop and
// persistence. It also fronts synchronous document management.
type Orchestrator struct {
	index      *IndexUseCase
	retrieval  *RetrievalUseCase
	compressor *Compressor
	loop       *ToolLoop

	embedder   ports.EmbeddingGateway
	executor   ports.ToolExecutor
	messages   ports.MessageStore
	indexStore ports.IndexStore
	memory     ports.SummaryVectorStore

	searchConfig domain.SearchConfig
	log          *slog.Logger
}

type OrchestratorDeps struct {
	Index      *IndexUseCase
	Retrieval  *RetrievalUseCase
	Compressor *Compressor
	Loop       *ToolLoop

	Embedder   ports.EmbeddingGateway
	Executor   ports.ToolExecutor
	Messages   ports.MessageStore
	IndexStore ports.IndexStore
	Memory     ports.SummaryVectorStore

	SearchConfig domain.SearchConfig
	Logger       *slog.Logger
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{
		index:        deps.Index,
		retrieval:    deps.Retrieval,
		compressor:   deps.Compressor,
		loop:         deps.Loop,
		embedder:     deps.Embedder,
		executor:     deps.Executor,
		messages:     deps.Messages,
		indexStore:   deps.IndexStore,
		memory:       deps.Memory,
		searchConfig: deps.SearchConfig.Normalized(),
		log:          deps.Logger,
	}
}

// Turn runs one conversational turn and streams its deltas. Retrieval,
// compression and memory recall are best effort: their failures are
// logged and the turn proceeds without them.
func (o *Orchestrator) Turn(ctx context.Context, conversationID, userMessage string) (<-chan domain.Delta, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat turn", domain.ErrInvalidInput)
	}

	history, err := o.loadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history = o.compact(ctx, conversationID, history)

	userMsg := domain.ConversationMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        userMessage,
		CreatedAt:      time.Now().UTC(),
	}
	history = append(history, userMsg)

	systemPrompt, contextChunks := o.buildSystemPrompt(ctx, userMessage)
	tools := o.listTools(ctx)

	out := make(chan domain.Delta, 16)
	go func() {
		defer close(out)
		for delta := range o.loop.Run(ctx, history, systemPrompt, tools) {
			if delta.Type == domain.DeltaComplete && delta.Complete != nil {
				delta.Complete.ContextChunks = contextChunks
				o.persistTurn(conversationID, history, delta.Complete.Messages)
			}
			select {
			case out <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	if o.messages == nil {
		return nil, nil
	}
	history, err := o.messages.ReadMessages(ctx, conversationID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "read history", err)
	}
	return history, nil
}

// compact applies history compression when the threshold is crossed and
// pushes the fresh summary into long-term memory.
func (o *Orchestrator) compact(ctx context.Context, conversationID string, history []domain.ConversationMessage) []domain.ConversationMessage {
	if o.compressor == nil || !o.compressor.ShouldCompress(history) {
		return history
	}
	compressed, err := o.compressor.Compress(ctx, conversationID, history)
	if err != nil {
		o.log.Warn("history compression failed, keeping full history", "conversation_id", conversationID, "error", err)
		return history
	}
	o.rememberSummary(ctx, conversationID, compressed)
	return compressed
}

func (o *Orchestrator) rememberSummary(ctx context.Context, conversationID string, messages []domain.ConversationMessage) {
	if o.memory == nil || o.embedder == nil {
		return
	}
	var latest *domain.ConversationMessage
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsSummary {
			latest = &messages[i]
			break
		}
	}
	if latest == nil {
		return
	}
	vector, err := o.embedder.Embed(ctx, latest.Content)
	if err != nil {
		o.log.Warn("summary embedding failed", "error", err)
		return
	}
	summary := domain.MemorySummary{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Summary:        latest.Content,
		MessageCount:   latest.SummarizedMessageCount,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.memory.IndexSummary(ctx, summary, vector); err != nil {
		o.log.Warn("summary indexing failed", "error", err)
	}
}

// buildSystemPrompt assembles retrieved chunks and recalled memories
// into the turn's system prompt. Returns the prompt and the number of
// context chunks it carries.
func (o *Orchestrator) buildSystemPrompt(ctx context.Context, userMessage string) (string, int) {
	var sections []string

	var chunks int
	if o.retrieval != nil {
		results, err := o.retrieval.Search(ctx, userMessage, o.searchConfig)
		if err != nil {
			o.log.Warn("retrieval failed, answering without context", "error", err)
		} else if len(results) > 0 {
			chunks = len(results)
			sections = append(sections, BuildContext(results, o.index.DocumentMetadata))
		}
	}

	if memories := o.recallMemories(ctx, userMessage); memories != "" {
		sections = append(sections, memories)
	}

	return strings.Join(sections, "\n"), chunks
}

func (o *Orchestrator) recallMemories(ctx context.Context, userMessage string) string {
	if o.memory == nil || o.embedder == nil {
		return ""
	}
	vector, err := o.embedder.Embed(ctx, userMessage)
	if err != nil {
		o.log.Warn("memory recall embedding failed", "error", err)
		return ""
	}
	hits, err := o.memory.SearchSummaries(ctx, vector, memoryRecallLimit)
	if err != nil {
		o.log.Warn("memory recall failed", "error", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant memories from earlier conversations:\n")
	for _, hit := range hits {
		b.WriteString("- ")
		b.WriteString(hit.Summary.Summary)
		b.WriteString("\n")
	}
	return b.String()
}

func (o *Orchestrator) listTools(ctx context.Context) []domain.ToolDefinition {
	if o.executor == nil {
		return nil
	}
	tools, err := o.executor.ListTools(ctx)
	if err != nil {
		o.log.Warn("tool listing failed, running without tools", "error", err)
		return nil
	}
	return tools
}

// persistTurn writes the post-turn transcript. Persistence failures are
// logged; the caller already received the streamed result.
func (o *Orchestrator) persistTurn(conversationID string, history, appended []domain.ConversationMessage) {
	if o.messages == nil {
		return
	}
	now := time.Now().UTC()
	full := make([]domain.ConversationMessage, 0, len(history)+len(appended))
	full = append(full, history...)
	for _, m := range appended {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		full = append(full, m)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.messages.WriteMessages(ctx, conversationID, full); err != nil {
		o.log.Warn("transcript persistence failed", "conversation_id", conversationID, "error", err)
	}
}

// IndexDocument chunks, embeds and indexes a document, then snapshots
// the index.
func (o *Orchestrator) IndexDocument(ctx context.Context, title, content string, metadata map[string]string) (*domain.Document, error) {
	doc, err := o.index.AddDocument(ctx, title, content, metadata)
	if err != nil {
		return nil, err
	}
	o.snapshotIndex(ctx)
	return doc, nil
}

// RemoveDocument deletes a document and all derived state from the
// index, then snapshots the index.
func (o *Orchestrator) RemoveDocument(ctx context.Context, documentID string) (bool, error) {
	removed, err := o.index.RemoveDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	if removed {
		o.snapshotIndex(ctx)
	}
	return removed, nil
}

func (o *Orchestrator) ListDocuments(ctx context.Context) []domain.Document {
	return o.index.ListDocuments(ctx)
}

func (o *Orchestrator) snapshotIndex(ctx context.Context) {
	if o.indexStore == nil {
		return
	}
	if err := o.indexStore.WriteIndex(ctx, o.index.Snapshot()); err != nil {
		o.log.Warn("index snapshot failed", "error", err)
	}
}
