package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "doc-1.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reader, err := storage.Open(ctx, "doc-1.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("round trip = %q", data)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../outside.txt", "/etc/passwd", "a/../../b"} {
		if err := storage.Save(ctx, key, strings.NewReader("x")); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestRemoveMissingBlobIsNoop(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := storage.Remove(context.Background(), "ghost.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}
