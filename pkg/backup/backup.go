// Package backup snapshots a closed or stably-held cvec database file to
// a [Store] (local disk or S3) and restores it again. It operates purely
// on bytes the database has already committed to disk; it has no
// awareness of the HNSW graph or the identifier map.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Manifest describes a single backup run.
type Manifest struct {
	RunID       string `msgpack:"run_id"`
	Name        string `msgpack:"name"`
	SourcePath  string `msgpack:"source_path"`
	VectorCount uint64 `msgpack:"vector_count"`
	Dimension   uint32 `msgpack:"dimension"`
	Timestamp   int64  `msgpack:"timestamp"`
	ContentHash string `msgpack:"content_hash"`
}

// Info carries the fields of a completed or prior database that a backup
// needs to describe, since pkg/backup does not import pkg/cvec: keeping
// backup dependency-free of cvec lets either evolve independently and
// mirrors how the source project layers storage beneath its domain
// packages rather than the reverse.
type Info struct {
	VectorCount uint64
	Dimension   uint32
}

// Backup copies the file at sourcePath into dst as the snapshot for a new
// run under name, then writes a msgpack-encoded [Manifest] alongside it.
// The caller must ensure sourcePath is either closed or otherwise stable
// for the duration of the copy. Returns the manifest that was written.
func Backup(ctx context.Context, dst Store, name, sourcePath string, info Info, now int64) (Manifest, error) {
	runID := uuid.NewString()

	src, err := os.Open(sourcePath)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: open source: %w", err)
	}
	defer src.Close()

	w, err := dst.WriteSnapshot(ctx, name, runID)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: open snapshot destination: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(w, h), src); err != nil {
		w.Close()
		return Manifest{}, fmt.Errorf("backup: copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return Manifest{}, fmt.Errorf("backup: flush snapshot: %w", err)
	}

	m := Manifest{
		RunID:       runID,
		Name:        name,
		SourcePath:  sourcePath,
		VectorCount: info.VectorCount,
		Dimension:   info.Dimension,
		Timestamp:   now,
		ContentHash: hex.EncodeToString(h.Sum(nil)),
	}

	encoded, err := msgpack.Marshal(&m)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: encode manifest: %w", err)
	}
	mw, err := dst.WriteManifest(ctx, name, runID)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: open manifest destination: %w", err)
	}
	if _, err := mw.Write(encoded); err != nil {
		mw.Close()
		return Manifest{}, fmt.Errorf("backup: write manifest: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("backup: flush manifest: %w", err)
	}

	return m, nil
}

// ReadManifest fetches and decodes the manifest for the given run.
func ReadManifest(ctx context.Context, src Store, name, runID string) (Manifest, error) {
	r, err := src.ReadManifest(ctx, name, runID)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: read manifest: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: read manifest: %w", err)
	}
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("backup: decode manifest: %w", err)
	}
	return m, nil
}

// Restore reads the manifest for (name, runID), verifies the referenced
// snapshot's content hash, and copies it to destPath where it can be
// opened as an ordinary database file. Returns an error if the copied
// bytes don't match the manifest's recorded hash.
func Restore(ctx context.Context, src Store, name, runID, destPath string) (Manifest, error) {
	m, err := ReadManifest(ctx, src, name, runID)
	if err != nil {
		return Manifest{}, err
	}

	r, err := src.ReadSnapshot(ctx, name, runID)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: read snapshot: %w", err)
	}
	defer r.Close()

	if dir := filepath.Dir(destPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Manifest{}, fmt.Errorf("backup: create destination dir: %w", err)
		}
	}
	out, err := os.Create(destPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("backup: create destination file: %w", err)
	}
	defer out.Close()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), r); err != nil {
		return Manifest{}, fmt.Errorf("backup: copy: %w", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if got != m.ContentHash {
		return Manifest{}, fmt.Errorf("backup: content hash mismatch: snapshot %s != manifest %s", got, m.ContentHash)
	}

	return m, nil
}
