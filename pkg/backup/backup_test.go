package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSourceFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.cvec")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBackupAndRestoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	dst, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	source := writeSourceFile(t, "a tiny fake database file")
	m, err := Backup(ctx, dst, "mydb", source, Info{VectorCount: 3, Dimension: 4}, 1700000000)
	if err != nil {
		t.Fatal(err)
	}
	if m.RunID == "" {
		t.Fatal("expected a non-empty run id")
	}
	if m.VectorCount != 3 || m.Dimension != 4 {
		t.Errorf("manifest fields = %+v, want VectorCount=3 Dimension=4", m)
	}

	destPath := filepath.Join(t.TempDir(), "restored.cvec")
	restored, err := Restore(ctx, dst, "mydb", m.RunID, destPath)
	if err != nil {
		t.Fatal(err)
	}
	if restored.ContentHash != m.ContentHash {
		t.Errorf("restored manifest hash = %q, want %q", restored.ContentHash, m.ContentHash)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a tiny fake database file" {
		t.Errorf("restored content = %q", got)
	}
}

func TestRestoreMissingManifest(t *testing.T) {
	ctx := context.Background()
	dst, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Restore(ctx, dst, "nope", "also-nope", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error restoring a nonexistent backup")
	}
}

func TestBackupMultipleRunsAreIndependent(t *testing.T) {
	ctx := context.Background()
	dst, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	source := writeSourceFile(t, "run one")
	m1, err := Backup(ctx, dst, "mydb", source, Info{VectorCount: 1, Dimension: 2}, 1)
	if err != nil {
		t.Fatal(err)
	}

	source2 := writeSourceFile(t, "run two")
	m2, err := Backup(ctx, dst, "mydb", source2, Info{VectorCount: 2, Dimension: 2}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if m1.RunID == m2.RunID {
		t.Fatal("expected distinct run ids for separate backups")
	}
	if m1.ContentHash == m2.ContentHash {
		t.Fatal("expected distinct content hashes for distinct source content")
	}
}

func TestBackupRejectsUnsafeName(t *testing.T) {
	ctx := context.Background()
	dst, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	source := writeSourceFile(t, "payload")

	for _, name := range []string{"../escape", "a/b", `a\b`, ""} {
		if _, err := Backup(ctx, dst, name, source, Info{}, 1); err == nil {
			t.Errorf("Backup(name=%q) succeeded, want error", name)
		}
	}
}

func TestDeleteRun(t *testing.T) {
	ctx := context.Background()
	dst, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	source := writeSourceFile(t, "to be deleted")
	m, err := Backup(ctx, dst, "mydb", source, Info{VectorCount: 1, Dimension: 1}, 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := dst.DeleteRun(ctx, "mydb", m.RunID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := ReadManifest(ctx, dst, "mydb", m.RunID); err == nil {
		t.Fatal("expected ReadManifest to fail after DeleteRun")
	}

	// Deleting an already-deleted run is not an error.
	if err := dst.DeleteRun(ctx, "mydb", m.RunID); err != nil {
		t.Fatalf("DeleteRun (idempotent): %v", err)
	}
}
