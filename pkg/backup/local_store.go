package backup

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps backup runs under a directory on local disk, one
// subdirectory per backup name and two files per run inside it.
type LocalStore struct {
	root string
}

// NewLocalStore creates (if needed) and returns a Store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

func (l *LocalStore) path(object string) string {
	return filepath.Join(l.root, filepath.FromSlash(object))
}

func (l *LocalStore) openWrite(_ context.Context, object string) (io.WriteCloser, error) {
	full := l.path(object)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

func (l *LocalStore) openRead(_ context.Context, object string) (io.ReadCloser, error) {
	return os.Open(l.path(object))
}

func (l *LocalStore) WriteSnapshot(ctx context.Context, name, runID string) (io.WriteCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return l.openWrite(ctx, snapshotObject(name, runID))
}

func (l *LocalStore) ReadSnapshot(ctx context.Context, name, runID string) (io.ReadCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return l.openRead(ctx, snapshotObject(name, runID))
}

func (l *LocalStore) WriteManifest(ctx context.Context, name, runID string) (io.WriteCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return l.openWrite(ctx, manifestObject(name, runID))
}

func (l *LocalStore) ReadManifest(ctx context.Context, name, runID string) (io.ReadCloser, error) {
	if err := validateRunKey(name); err != nil {
		return nil, err
	}
	return l.openRead(ctx, manifestObject(name, runID))
}

func (l *LocalStore) DeleteRun(_ context.Context, name, runID string) error {
	if err := validateRunKey(name); err != nil {
		return err
	}
	for _, object := range []string{snapshotObject(name, runID), manifestObject(name, runID)} {
		if err := os.Remove(l.path(object)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

var _ Store = (*LocalStore)(nil)
