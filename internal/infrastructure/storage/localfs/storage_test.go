package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenDeleteRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "doc-1_report.pdf", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	f, err := storage.Open(ctx, "doc-1_report.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("unexpected blob content %q", raw)
	}

	if err := storage.Delete(ctx, "doc-1_report.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := storage.Open(ctx, "doc-1_report.pdf"); err == nil {
		t.Fatalf("expected open to fail after delete")
	}
}

func TestDeleteMissingBlobIsNoOp(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := storage.Delete(context.Background(), "never-saved"); err != nil {
		t.Fatalf("Delete() on missing blob error = %v", err)
	}
}
