package cache

import (
	"context"
	"fmt"

	"github.com/book-expert/chat-tts-service/internal/spool"
)

// materializer is implemented by stores that can place an artifact at a path
// without reading it into memory.
type materializer interface {
	Materialize(ctx context.Context, key, outputPath string) (bool, error)
}

// Cache is the lookup/store/materialize surface used by the pipeline.
type Cache struct {
	store Store
}

// New returns a Cache backed by store.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Lookup returns the artifact for key, or ErrNotFound on a miss.
func (c *Cache) Lookup(ctx context.Context, key string) ([]byte, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	if !found {
		return nil, ErrNotFound
	}

	return data, nil
}

// Store records data under key. Storing a key that is already present is a
// no-op that succeeds.
func (c *Cache) Store(ctx context.Context, key string, data []byte) error {
	err := c.store.PutIfAbsent(ctx, key, data)
	if err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}

	return nil
}

// Materialize places the cached artifact for key at outputPath. It returns
// ErrNotFound on a miss and leaves outputPath untouched.
func (c *Cache) Materialize(ctx context.Context, key, outputPath string) error {
	if m, ok := c.store.(materializer); ok {
		found, err := m.Materialize(ctx, key, outputPath)
		if err != nil {
			return fmt.Errorf("cache materialize failed: %w", err)
		}

		if !found {
			return ErrNotFound
		}

		return nil
	}

	data, err := c.Lookup(ctx, key)
	if err != nil {
		return err
	}

	writeErr := spool.WriteFile(outputPath, data)
	if writeErr != nil {
		return fmt.Errorf("cache materialize failed: %w", writeErr)
	}

	return nil
}
