package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/chat-tts-service/internal/spool"
)

const cacheDirPermissions = 0o750

// DiskStore keeps one file per key in a directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	err := os.MkdirAll(dir, cacheDirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	return &DiskStore{dir: dir}, nil
}

// Path returns the file that holds key.
func (d *DiskStore) Path(key string) string {
	return filepath.Join(d.dir, ObjectName(key))
}

// Get reads the artifact for key.
func (d *DiskStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if !ValidKey(key) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	data, err := os.ReadFile(d.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	return data, true, nil
}

// PutIfAbsent writes data under key unless a file already exists. The file is
// written through a temp file and rename, so concurrent writers of the same
// key each install a complete file and the last rename wins.
func (d *DiskStore) PutIfAbsent(_ context.Context, key string, data []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if len(data) == 0 {
		return ErrEmptyArtifact
	}

	path := d.Path(key)

	_, statErr := os.Stat(path)
	if statErr == nil {
		return nil
	}

	writeErr := spool.WriteFile(path, data)
	if writeErr != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, writeErr)
	}

	return nil
}

// Materialize links the cached file for key to outputPath, copying when a
// hard link is not possible. It reports false when key is not cached.
func (d *DiskStore) Materialize(_ context.Context, key, outputPath string) (bool, error) {
	if !ValidKey(key) {
		return false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	path := d.Path(key)

	_, statErr := os.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat cache entry %s: %w", key, statErr)
	}

	linkErr := spool.LinkOrCopy(path, outputPath)
	if linkErr != nil {
		return false, fmt.Errorf("failed to materialize cache entry %s: %w", key, linkErr)
	}

	return true, nil
}
