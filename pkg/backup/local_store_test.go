package backup

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreWriteAndRead(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	w, err := s.WriteSnapshot(ctx, "mydb", "run1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := s.ReadSnapshot(ctx, "mydb", "run1")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("read = %q, want %q", got, "hello")
	}
}

func TestLocalStoreReadMissingSnapshot(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadSnapshot(context.Background(), "mydb", "nope"); err == nil {
		t.Fatal("expected error reading a snapshot that was never written")
	}
}

func TestLocalStoreCreatesNameSubdir(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.WriteManifest(context.Background(), "mydb", "run1")
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	if _, err := os.Stat(filepath.Join(root, "mydb", "run1.manifest")); err != nil {
		t.Errorf("expected manifest object on disk: %v", err)
	}
}

func TestLocalStoreRejectsNameWithSeparators(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, name := range []string{"a/b", "../escape", `a\b`} {
		if _, err := s.WriteSnapshot(ctx, name, "run1"); err == nil {
			t.Errorf("WriteSnapshot(name=%q) succeeded, want error", name)
		}
	}
}

var _ Store = (*LocalStore)(nil)
