// Package core defines the ports shared by the chat TTS pipeline.
package core

import (
	"context"
	"errors"
)

var (
	// ErrSynthesisTimeout indicates the synthesizer did not return within its deadline.
	ErrSynthesisTimeout = errors.New("synthesis timed out")
	// ErrSynthesisFailed indicates the synthesizer failed or crashed.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrAudioTooSmall indicates the synthesizer produced missing or undersized audio.
	ErrAudioTooSmall = errors.New("synthesized audio is missing or undersized")
	// ErrObjectNotFound indicates the object store has no object under the key.
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Synthesizer turns normalized text into raw audio bytes.
// Implementations must honour the context deadline.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Notifier delivers a user-facing chat notice.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// JobResult describes the terminal outcome of one synthesis job.
type JobResult struct {
	JobID       string
	CacheKey    string
	OutputPath  string
	RequestedBy string
	FromCache   bool
	OK          bool
	Error       string
}

// ResultPublisher announces terminal job outcomes to downstream consumers.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result JobResult) error
}
