package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o640
)

// FileStore writes objects to the local filesystem. The bucket is ignored
// and the key is an absolute path.
type FileStore struct{}

// NewFileStore creates a filesystem store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// PutObject writes data to key, replacing the file atomically.
func (f *FileStore) PutObject(_ context.Context, _, key string, data []byte, _ string) error {
	dir := filepath.Dir(key)

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(key)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()

	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr == nil {
		writeErr = os.Chmod(tmpName, filePermissions)
	}

	if writeErr == nil {
		writeErr = os.Rename(tmpName, key)
	}

	if writeErr != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", key, writeErr)
	}

	return nil
}

// GetObject reads the file at key.
func (f *FileStore) GetObject(_ context.Context, _, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return data, nil
}
