package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

// MessageRepository persists conversation transcripts. WriteMessages
// replaces the whole conversation in one transaction so compression
// rewrites commit atomically.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) ReadMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, role, content, tokens, is_summary, summarized_message_count, summarized_tokens, tokens_saved, created_at
FROM conversation_messages
WHERE conversation_id = $1
ORDER BY position ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query conversation messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		var role string
		if err := rows.Scan(
			&m.ID, &role, &m.Content, &m.Tokens, &m.IsSummary,
			&m.SummarizedMessageCount, &m.SummarizedTokens, &m.TokensSaved, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		m.ConversationID = conversationID
		m.Role = domain.MessageRole(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) WriteMessages(ctx context.Context, conversationID string, messages []domain.ConversationMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin messages tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("clear conversation messages: %w", err)
	}

	for position, m := range messages {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_messages (
	id, conversation_id, position, role, content, tokens, is_summary,
	summarized_message_count, summarized_tokens, tokens_saved, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
			m.ID, conversationID, position, string(m.Role), m.Content, m.Tokens, m.IsSummary,
			m.SummarizedMessageCount, m.SummarizedTokens, m.TokensSaved, m.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert conversation message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit messages tx: %w", err)
	}
	return nil
}
