package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

const defaultSnapshotName = "rag_index"

// SnapshotRepository stores the whole RAG index as one JSONB blob so a
// restart restores exactly the last committed state.
type SnapshotRepository struct {
	db   *sql.DB
	name string
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db, name: defaultSnapshotName}
}

func (r *SnapshotRepository) ReadIndex(ctx context.Context) (*domain.IndexSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT snapshot FROM index_snapshots WHERE name = $1
`, r.name)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan index snapshot: %w", err)
	}

	var snapshot domain.IndexSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal index snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *SnapshotRepository) WriteIndex(ctx context.Context, snapshot domain.IndexSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal index snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO index_snapshots (name, snapshot, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at
`, r.name, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert index snapshot: %w", err)
	}
	return nil
}
