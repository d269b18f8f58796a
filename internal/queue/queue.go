// Package queue provides the bounded FIFO that hands accepted jobs to the
// synthesis worker.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull indicates the queue is at capacity. Enqueue never blocks.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueClosed indicates the queue no longer accepts or yields jobs.
	ErrQueueClosed = errors.New("job queue is closed")
)

// Job is one unit of synthesis work.
type Job struct {
	ID          string
	Text        string
	CacheKey    string
	OutputPath  string
	RequestedBy string
	EnqueuedAt  time.Time
}

// NewJob creates a job with a fresh identifier.
func NewJob(text, cacheKey, outputPath, requestedBy string, now time.Time) Job {
	return Job{
		ID:          uuid.NewString(),
		Text:        text,
		CacheKey:    cacheKey,
		OutputPath:  outputPath,
		RequestedBy: requestedBy,
		EnqueuedAt:  now,
	}
}

// Queue is a fixed-capacity FIFO backed by a buffered channel.
// Any number of producers may call Enqueue; Dequeue is intended for one consumer.
type Queue struct {
	jobs chan Job

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// New creates a queue holding at most capacity jobs.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}

	return &Queue{jobs: make(chan Job, capacity)}
}

// Enqueue adds job to the tail of the queue without blocking. It returns
// ErrQueueFull when the queue is at capacity.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until a job is available, the context ends, or the queue is
// closed and drained.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return Job{}, ErrQueueClosed
		}

		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// TryDequeue returns the next job without blocking. ok is false when the
// queue is empty or closed and drained.
func (q *Queue) TryDequeue() (job Job, ok bool) {
	select {
	case job, ok = <-q.jobs:
		return job, ok
	default:
		return Job{}, false
	}
}

// Len returns the number of jobs waiting.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.jobs)
}

// Close stops accepting jobs. Jobs already queued can still be dequeued.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
}
