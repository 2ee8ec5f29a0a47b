package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

func newSnapshotRepoWithMock(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewSnapshotRepository(db), mock, func() { _ = db.Close() }
}

func TestReadIndexMissingSnapshotReturnsNil(t *testing.T) {
	repo, mock, done := newSnapshotRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT snapshot FROM index_snapshots").
		WithArgs(defaultSnapshotName).
		WillReturnError(sql.ErrNoRows)

	snapshot, err := repo.ReadIndex(context.Background())
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil snapshot, got %+v", snapshot)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReadIndexDecodesSnapshot(t *testing.T) {
	repo, mock, done := newSnapshotRepoWithMock(t)
	defer done()

	stored := domain.IndexSnapshot{
		Documents: []domain.Document{{ID: "d1", Title: "doc"}},
		Embeddings: []domain.ChunkEmbedding{
			{ChunkID: "d1:0", DocumentID: "d1", Content: "text", Embedding: []float64{0.1, 0.2}},
		},
	}
	raw, _ := json.Marshal(stored)

	mock.ExpectQuery("SELECT snapshot FROM index_snapshots").
		WithArgs(defaultSnapshotName).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot"}).AddRow(raw))

	snapshot, err := repo.ReadIndex(context.Background())
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(snapshot.Documents) != 1 || len(snapshot.Embeddings) != 1 {
		t.Fatalf("snapshot not decoded: %+v", snapshot)
	}
	if snapshot.Embeddings[0].Embedding[1] != 0.2 {
		t.Fatalf("embedding values lost: %+v", snapshot.Embeddings[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWriteIndexUpserts(t *testing.T) {
	repo, mock, done := newSnapshotRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO index_snapshots").
		WithArgs(defaultSnapshotName, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.WriteIndex(context.Background(), domain.IndexSnapshot{
		Documents: []domain.Document{{ID: "d1"}},
	})
	if err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
