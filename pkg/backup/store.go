package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Store is where backup runs live: the snapshot (a byte-for-byte copy of
// a database file) and its manifest side-car, addressed by the backup's
// name and the run that produced them. Unlike a generic file store, a
// Store never takes an arbitrary path from its caller: only a name and
// a run ID it already knows about, because the run ID always comes from
// [Backup]'s own uuid.NewString() call, never from outside input.
type Store interface {
	// WriteSnapshot opens the snapshot object for (name, runID) for
	// writing. The caller must Close it.
	WriteSnapshot(ctx context.Context, name, runID string) (io.WriteCloser, error)
	// ReadSnapshot opens the snapshot object for (name, runID) for
	// reading. The caller must Close it.
	ReadSnapshot(ctx context.Context, name, runID string) (io.ReadCloser, error)
	// WriteManifest opens the manifest object for (name, runID) for
	// writing. The caller must Close it.
	WriteManifest(ctx context.Context, name, runID string) (io.WriteCloser, error)
	// ReadManifest opens the manifest object for (name, runID) for
	// reading. The caller must Close it.
	ReadManifest(ctx context.Context, name, runID string) (io.ReadCloser, error)
	// DeleteRun removes both the snapshot and the manifest for
	// (name, runID). It is not an error if one or both are already gone.
	DeleteRun(ctx context.Context, name, runID string) error
}

// validateRunKey rejects a name that could escape the backup's own
// directory tree once joined with a run ID. The run ID itself is never
// caller-supplied (see Store), so only name needs checking.
func validateRunKey(name string) error {
	if name == "" {
		return errors.New("backup: name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("backup: name %q must not contain path separators or \"..\"", name)
	}
	return nil
}

func snapshotObject(name, runID string) string { return name + "/" + runID + ".cvec" }
func manifestObject(name, runID string) string { return name + "/" + runID + ".manifest" }
