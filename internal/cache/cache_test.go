package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/book-expert/chat-tts-service/internal/cache"
	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockStore = errors.New("mock object store failure")

// mockObjectStore is an in-memory core.ObjectStore.
type mockObjectStore struct {
	mu                 sync.Mutex
	objects            map[string][]byte
	uploads            int
	DownloadShouldFail bool
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: make(map[string][]byte)}
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DownloadShouldFail {
		return nil, errMockStore
	}

	data, ok := m.objects[key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}

	return data, nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploads++
	m.objects[key] = data

	return nil
}

func (m *mockObjectStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]

	return ok, nil
}

func storeFactories() map[string]func(t *testing.T) cache.Store {
	return map[string]func(t *testing.T) cache.Store{
		"disk": func(t *testing.T) cache.Store {
			t.Helper()

			store, err := cache.NewDiskStore(filepath.Join(t.TempDir(), "cache"))
			require.NoError(t, err)

			return store
		},
		"memory": func(t *testing.T) cache.Store {
			t.Helper()

			return cache.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) cache.Store {
			t.Helper()

			store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "db", "cache.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			return store
		},
		"remote": func(t *testing.T) cache.Store {
			t.Helper()

			return cache.NewRemoteStore(newMockObjectStore())
		},
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	first := cache.Key("hello there.")

	assert.Equal(t, first, cache.Key("hello there."))
	assert.NotEqual(t, first, cache.Key("hello there!"))
	assert.Len(t, first, 64)
	assert.True(t, cache.ValidKey(first))
	assert.False(t, cache.ValidKey("../../etc/passwd"))
	assert.False(t, cache.ValidKey(""))
	assert.Equal(t, first+".wav", cache.ObjectName(first))
}

func TestStores_GetAndPutIfAbsent(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := factory(t)
			key := cache.Key("hello there.")

			_, found, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.PutIfAbsent(ctx, key, []byte("first")))
			require.NoError(t, store.PutIfAbsent(ctx, key, []byte("second")), "a second put is a no-op")

			data, found, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("first"), data)
		})
	}
}

func TestStores_RejectInvalidInput(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := factory(t)

			require.ErrorIs(t, store.PutIfAbsent(ctx, "not-a-digest", []byte("x")), cache.ErrInvalidKey)
			require.ErrorIs(t, store.PutIfAbsent(ctx, cache.Key("x"), nil), cache.ErrEmptyArtifact)
		})
	}
}

func TestStores_ConcurrentPutIfAbsent(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := factory(t)
			key := cache.Key("same text.")
			payload := []byte("identical synthesized audio")

			var waitGroup sync.WaitGroup

			for range 16 {
				waitGroup.Add(1)

				go func() {
					defer waitGroup.Done()

					assert.NoError(t, store.PutIfAbsent(ctx, key, payload))
				}()
			}

			waitGroup.Wait()

			data, found, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, payload, data)
		})
	}
}

func TestDiskStore_NoTempFilesLeft(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := cache.NewDiskStore(dir)
	require.NoError(t, err)

	key := cache.Key("hello.")
	require.NoError(t, store.PutIfAbsent(context.Background(), key, []byte("audio")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, cache.ObjectName(key), entries[0].Name())
}

func TestRemoteStore_UploadsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	objects := newMockObjectStore()
	store := cache.NewRemoteStore(objects)
	key := cache.Key("hello.")

	require.NoError(t, store.PutIfAbsent(ctx, key, []byte("audio")))
	require.NoError(t, store.PutIfAbsent(ctx, key, []byte("audio")))

	assert.Equal(t, 1, objects.uploads)
	assert.Contains(t, objects.objects, cache.ObjectName(key))
}

func TestRemoteStore_PropagatesFailures(t *testing.T) {
	t.Parallel()

	objects := newMockObjectStore()
	objects.DownloadShouldFail = true

	_, _, err := cache.NewRemoteStore(objects).Get(context.Background(), cache.Key("x"))
	require.ErrorIs(t, err, errMockStore)
}

func TestCache_LookupStoreMaterialize(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			audioCache := cache.New(factory(t))
			key := cache.Key("hello there.")
			output := filepath.Join(t.TempDir(), "queue", "1_0001.wav")

			_, err := audioCache.Lookup(ctx, key)
			require.ErrorIs(t, err, cache.ErrNotFound)

			require.ErrorIs(t, audioCache.Materialize(ctx, key, output), cache.ErrNotFound)
			assert.NoFileExists(t, output)

			require.NoError(t, audioCache.Store(ctx, key, []byte("synthesized")))

			data, err := audioCache.Lookup(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, []byte("synthesized"), data)

			require.NoError(t, audioCache.Materialize(ctx, key, output))

			written, err := os.ReadFile(output)
			require.NoError(t, err)
			assert.Equal(t, []byte("synthesized"), written)
		})
	}
}
