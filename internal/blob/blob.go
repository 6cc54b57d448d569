package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/google/uuid"
)

// Store keeps the bytes of attached files. References are opaque to callers.
type Store interface {
	Store(ctx context.Context, data []byte) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
	// Delete is a no-op for references that do not exist.
	Delete(ctx context.Context, ref string) error
}

var _ Store = (*FS)(nil)

// FS keeps blobs as files under root, sharded by the first two characters of the reference.
type FS struct {
	root string
}

// NewFS creates the root directory if needed.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: mkdir root: %w", err)
	}

	return &FS{root: abs}, nil
}

func (f *FS) path(ref string) (string, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: blob %q", apperr.ErrNotFound, ref)
	}
	s := id.String()

	return filepath.Join(f.root, s[:2], s), nil
}

// Store writes data atomically: tmp file, fsync, rename.
func (f *FS) Store(_ context.Context, data []byte) (string, error) {
	ref := uuid.New().String()
	abs, _ := f.path(ref)

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-tmp-*")
	if err != nil {
		return "", fmt.Errorf("blob: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("blob: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("blob: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("blob: close: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("blob: rename: %w", err)
	}

	return ref, nil
}

func (f *FS) Fetch(_ context.Context, ref string) ([]byte, error) {
	abs, err := f.path(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", apperr.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", ref, err)
	}

	return data, nil
}

func (f *FS) Delete(_ context.Context, ref string) error {
	abs, err := f.path(ref)
	if err != nil {
		return nil
	}

	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blob: delete %s: %w", ref, err)
	}

	return nil
}
