// Package cache is the content-addressed store of synthesized audio. Entries
// are keyed by the digest of the normalized text and are immutable once written.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// FileSuffix is appended to cache keys to form on-disk and object names.
const FileSuffix = ".wav"

var (
	// ErrNotFound indicates that no artifact exists for the key.
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidKey indicates a key that is not a hex SHA-256 digest.
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrEmptyArtifact indicates an attempt to store zero bytes.
	ErrEmptyArtifact = errors.New("cannot cache an empty artifact")
)

// Store is a write-once key/value store for audio artifacts.
// PutIfAbsent must be safe against a concurrent PutIfAbsent of the same key:
// either writer may win, and readers never observe a partial value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	PutIfAbsent(ctx context.Context, key string, data []byte) error
}

// Key returns the cache key of normalized text.
func Key(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])
}

// ValidKey reports whether key has the shape produced by Key.
func ValidKey(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}

	_, err := hex.DecodeString(key)

	return err == nil
}

// ObjectName returns the name an artifact is stored under.
func ObjectName(key string) string {
	return key + FileSuffix
}
