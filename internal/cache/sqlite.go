package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const createArtifactsTable = `
CREATE TABLE IF NOT EXISTS artifacts (
	cache_key TEXT PRIMARY KEY,
	audio BLOB NOT NULL,
	size_bytes INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
`

// SQLiteStore keeps artifacts as BLOBs in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dirErr := os.MkdirAll(filepath.Dir(dbPath), cacheDirPermissions)
	if dirErr != nil {
		return nil, fmt.Errorf("failed to create cache db directory: %w", dirErr)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	// A single connection serializes writers inside the process.
	db.SetMaxOpenConns(1)

	_, migrateErr := db.Exec(createArtifactsTable)
	if migrateErr != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to migrate cache db: %w", migrateErr)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the artifact for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var audio []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT audio FROM artifacts WHERE cache_key = ?`, key,
	).Scan(&audio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	return audio, true, nil
}

// PutIfAbsent inserts data under key; an existing row is kept.
func (s *SQLiteStore) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if len(data) == 0 {
		return ErrEmptyArtifact
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO artifacts (cache_key, audio, size_bytes, created_at) VALUES (?, ?, ?, ?)`,
		key, data, len(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}

	return nil
}

// Count returns the number of stored artifacts.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}

	return count, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
