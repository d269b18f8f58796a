// Package worker provides the single consumer that drains the job queue and
// drives the synthesizer.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/chat-tts-service/internal/cache"
	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/metrics"
	"github.com/book-expert/chat-tts-service/internal/queue"
	"github.com/book-expert/chat-tts-service/internal/spool"
	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"
)

const (
	defaultSynthesisTimeout = 30 * time.Second
	publishTimeout          = 5 * time.Second
)

var (
	// ErrMissingDependency indicates that a required collaborator was nil.
	ErrMissingDependency = errors.New("worker dependency cannot be nil")
	// ErrWorkerStopped is reported for jobs still queued when the worker stops.
	ErrWorkerStopped = errors.New("worker stopped before the job was synthesized")
)

// Config holds the worker limits.
type Config struct {
	SynthesisTimeout time.Duration
	MinAudioBytes    int
}

// Dependencies are the collaborators of a Worker. Publisher and Metrics are optional.
type Dependencies struct {
	Queue       *queue.Queue
	Synthesizer core.Synthesizer
	Cache       *cache.Cache
	Outputs     *spool.Spool
	Publisher   core.ResultPublisher
	Metrics     *metrics.Metrics
}

// Worker synthesizes queued jobs one at a time.
type Worker struct {
	queue       *queue.Queue
	synthesizer core.Synthesizer
	cache       *cache.Cache
	outputs     *spool.Spool
	publisher   core.ResultPublisher
	metrics     *metrics.Metrics
	config      Config
	log         *logger.Logger
}

// New creates a Worker.
func New(cfg Config, deps Dependencies, log *logger.Logger) (*Worker, error) {
	if deps.Queue == nil || deps.Synthesizer == nil || deps.Cache == nil || deps.Outputs == nil || log == nil {
		return nil, ErrMissingDependency
	}

	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = defaultSynthesisTimeout
	}

	return &Worker{
		queue:       deps.Queue,
		synthesizer: deps.Synthesizer,
		cache:       deps.Cache,
		outputs:     deps.Outputs,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		config:      cfg,
		log:         log,
	}, nil
}

// Run drains the queue until the queue is closed and empty or ctx is
// cancelled. A dequeued job is always finished, even after ctx is cancelled,
// and a failure or panic in one job never stops the loop. On cancellation the
// jobs still waiting get fallback audio without synthesis.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			w.abandonQueued(ctx)

			return nil
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				return nil
			}

			if ctx.Err() != nil {
				continue
			}

			return fmt.Errorf("failed to dequeue job: %w", err)
		}

		w.metrics.SetQueueDepth(w.queue.Len())
		w.runJob(ctx, job)
	}
}

// runJob processes job and recovers from a panic anywhere in the job, leaving
// the fallback audio in place of a missing output.
func (w *Worker) runJob(ctx context.Context, job queue.Job) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		w.log.Error("Job %s for %s panicked: %v", job.ID, job.RequestedBy, recovered)

		_, statErr := os.Stat(job.OutputPath)
		if statErr != nil {
			w.writeFallback(job)
		}
	}()

	w.Process(ctx, job)
}

// abandonQueued writes fallback audio for every job left in the queue.
func (w *Worker) abandonQueued(ctx context.Context) {
	abandoned := 0

	for {
		job, ok := w.queue.TryDequeue()
		if !ok {
			break
		}

		w.writeFallback(job)
		w.publish(context.WithoutCancel(ctx), core.JobResult{
			JobID:       job.ID,
			CacheKey:    job.CacheKey,
			OutputPath:  job.OutputPath,
			RequestedBy: job.RequestedBy,
			FromCache:   false,
			OK:          false,
			Error:       ErrWorkerStopped.Error(),
		})

		abandoned++
	}

	if abandoned > 0 {
		w.log.Warn("Worker stopped with %d queued jobs, wrote fallback audio for them", abandoned)
	}

	w.metrics.SetQueueDepth(0)
}

// Process runs one job to a terminal state. On return job.OutputPath holds
// either synthesized, cached or fallback audio.
func (w *Worker) Process(ctx context.Context, job queue.Job) core.JobResult {
	ctx = context.WithoutCancel(ctx)

	result := core.JobResult{
		JobID:       job.ID,
		CacheKey:    job.CacheKey,
		OutputPath:  job.OutputPath,
		RequestedBy: job.RequestedBy,
		FromCache:   false,
		OK:          false,
		Error:       "",
	}

	// A duplicate queued before the first copy finished is served from cache.
	materializeErr := w.cache.Materialize(ctx, job.CacheKey, job.OutputPath)
	if materializeErr == nil {
		w.log.Info("Job %s served from cache for %s", job.ID, job.RequestedBy)
		w.metrics.ObserveJob(metrics.JobCached, 0)

		result.FromCache = true
		result.OK = true
		w.publish(ctx, result)

		return result
	}

	if !errors.Is(materializeErr, cache.ErrNotFound) {
		w.log.Warn("Cache recheck failed for job %s: %v", job.ID, materializeErr)
	}

	start := time.Now()
	audio, synthErr := w.synthesize(ctx, job.Text)
	elapsed := time.Since(start)

	if synthErr == nil {
		synthErr = w.deliver(ctx, job, audio)
	}

	if synthErr != nil {
		w.log.Error("Job %s for %s failed after %s: %v", job.ID, job.RequestedBy, elapsed.Round(time.Millisecond), synthErr)
		w.writeFallback(job)
		w.metrics.ObserveJob(metrics.JobFallback, elapsed)

		result.Error = synthErr.Error()
		w.publish(ctx, result)

		return result
	}

	w.log.Info("Job %s for %s synthesized %s in %s",
		job.ID, job.RequestedBy, humanize.Bytes(uint64(len(audio))), elapsed.Round(time.Millisecond))
	w.metrics.ObserveJob(metrics.JobSynthesized, elapsed)

	result.OK = true
	w.publish(ctx, result)

	return result
}

type synthesisResult struct {
	audio []byte
	err   error
}

// synthesize calls the synthesizer under the job deadline. The deadline holds
// even when the synthesizer ignores its context: a late result is dropped.
// A panic in the synthesizer becomes ErrSynthesisFailed.
func (w *Worker) synthesize(ctx context.Context, text string) ([]byte, error) {
	synthCtx, cancel := context.WithTimeout(ctx, w.config.SynthesisTimeout)
	defer cancel()

	results := make(chan synthesisResult, 1)

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				results <- synthesisResult{
					audio: nil,
					err:   fmt.Errorf("%w: panic: %v", core.ErrSynthesisFailed, recovered),
				}
			}
		}()

		audio, err := w.synthesizer.Synthesize(synthCtx, text)
		results <- synthesisResult{audio: audio, err: err}
	}()

	var result synthesisResult

	select {
	case result = <-results:
	case <-synthCtx.Done():
		return nil, fmt.Errorf("%w after %s", core.ErrSynthesisTimeout, w.config.SynthesisTimeout)
	}

	if result.err != nil {
		if errors.Is(synthCtx.Err(), context.DeadlineExceeded) && !errors.Is(result.err, core.ErrSynthesisTimeout) {
			return nil, fmt.Errorf("%w: %w", core.ErrSynthesisTimeout, result.err)
		}

		return nil, result.err
	}

	if len(result.audio) == 0 || len(result.audio) < w.config.MinAudioBytes {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", core.ErrAudioTooSmall, len(result.audio), w.config.MinAudioBytes)
	}

	return result.audio, nil
}

// deliver writes synthesized audio to the job output, the cache and the
// latest pointer. Only the output write is fatal to the job.
func (w *Worker) deliver(ctx context.Context, job queue.Job, audio []byte) error {
	writeErr := spool.WriteFile(job.OutputPath, audio)
	if writeErr != nil {
		return fmt.Errorf("failed to write output for job %s: %w", job.ID, writeErr)
	}

	storeErr := w.cache.Store(ctx, job.CacheKey, audio)
	if storeErr != nil {
		w.log.Warn("Failed to cache audio for job %s: %v", job.ID, storeErr)
	}

	latestErr := w.outputs.UpdateLatest(job.OutputPath)
	if latestErr != nil {
		w.log.Warn("Failed to update latest pointer for job %s: %v", job.ID, latestErr)
	}

	return nil
}

func (w *Worker) writeFallback(job queue.Job) {
	err := spool.WriteFallback(job.OutputPath)
	if err != nil {
		w.log.Error("Failed to write fallback audio for job %s to %s: %v", job.ID, job.OutputPath, err)
	}
}

func (w *Worker) publish(ctx context.Context, result core.JobResult) {
	if w.publisher == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := w.publisher.PublishResult(publishCtx, result)
	if err != nil {
		w.log.Warn("Failed to publish result for job %s: %v", result.JobID, err)
	}
}
