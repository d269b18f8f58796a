package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/chat-tts-service/internal/core"
)

// RemoteStore adapts a core.ObjectStore (for example a JetStream object
// store bucket) to Store.
type RemoteStore struct {
	objects core.ObjectStore
}

// NewRemoteStore wraps objects.
func NewRemoteStore(objects core.ObjectStore) *RemoteStore {
	return &RemoteStore{objects: objects}
}

// Get downloads the artifact for key.
func (r *RemoteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.objects.Download(ctx, ObjectName(key))
	if err != nil {
		if errors.Is(err, core.ErrObjectNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to download cache entry %s: %w", key, err)
	}

	return data, true, nil
}

// PutIfAbsent uploads data unless an object already exists. Two racing
// uploads of one key carry identical content, so either may win.
func (r *RemoteStore) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if len(data) == 0 {
		return ErrEmptyArtifact
	}

	name := ObjectName(key)

	exists, existsErr := r.objects.Exists(ctx, name)
	if existsErr != nil {
		return fmt.Errorf("failed to check cache entry %s: %w", key, existsErr)
	}

	if exists {
		return nil
	}

	uploadErr := r.objects.Upload(ctx, name, data)
	if uploadErr != nil {
		return fmt.Errorf("failed to upload cache entry %s: %w", key, uploadErr)
	}

	return nil
}
