package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fieldservice/backend/internal/application/backup"
)

// LocalArchiveStore stores backup bundles as files in a directory
type LocalArchiveStore struct {
	dir string
}

// NewLocalArchiveStore creates dir if needed and returns an archive over it
func NewLocalArchiveStore(dir string) (*LocalArchiveStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", dir, err)
	}
	return &LocalArchiveStore{dir: dir}, nil
}

// Put writes the bundle to a temporary file and renames it into place
func (s *LocalArchiveStore) Put(_ context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	target := filepath.Join(s.dir, key)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to write backup %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write backup %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write backup %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to write backup %s: %w", key, err)
	}
	return nil
}

// Get reads the bundle stored under key
func (s *LocalArchiveStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", key, err)
	}
	return data, nil
}

var _ backup.ArchiveStore = (*LocalArchiveStore)(nil)
