package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps each document as <name>.json inside a data directory.
// Writes go through a temp file and rename, so readers never observe a
// half-written document.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("repository.NewFileStore: mkdir %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Read returns the raw document body, or ErrNotFound if it was never written.
func (s *FileStore) Read(_ context.Context, name string) ([]byte, error) {
	body, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository.FileStore.Read: %s: %w", name, err)
	}
	return body, nil
}

// Write replaces the document atomically via temp file + rename.
func (s *FileStore) Write(_ context.Context, name string, body []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("repository.FileStore.Write: temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("repository.FileStore.Write: %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("repository.FileStore.Write: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("repository.FileStore.Write: close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("repository.FileStore.Write: rename %s: %w", name, err)
	}
	return nil
}

// Close is a no-op; files are closed per operation.
func (s *FileStore) Close() error { return nil }
