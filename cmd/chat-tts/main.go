// main package for the chat-tts service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/chat-tts-service/internal/chat"
	"github.com/book-expert/chat-tts-service/internal/config"
	"github.com/book-expert/chat-tts-service/internal/metrics"
	"github.com/book-expert/chat-tts-service/internal/pipeline"
	"github.com/book-expert/chat-tts-service/internal/queue"
	"github.com/book-expert/chat-tts-service/internal/spool"
	"github.com/book-expert/chat-tts-service/internal/worker"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const serviceName = "chat-tts-service"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal in production.
	_ = godotenv.Load()

	bootstrapLog, err := setupLogger(os.TempDir(), "chat-tts-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	log, err := setupLogger(cfg.Paths.BaseLogsDir, "chat-tts.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(ctx, cfg, log)
}

// serve wires the pipeline and runs the listener, the worker and the metrics
// endpoint until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	store, closeStore, err := newCacheStore(cfg, natsConnection)
	if err != nil {
		return err
	}
	defer closeStore()

	outputs, err := spool.New(cfg.Paths.QueueDir)
	if err != nil {
		return fmt.Errorf("failed to prepare queue directory: %w", err)
	}

	synthesizer, err := newSynthesizer(ctx, cfg, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipelineMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	jobs := queue.New(cfg.QueueCapacity())
	notifier := chat.NewNatsNotifier(natsConnection, cfg.NATS.NoticeSubject, cfg.Channel.Name, cfg.Limits.ChatMessageLimit)

	coordinator, err := pipeline.New(
		pipeline.Config{
			MaxTextLength:  cfg.Limits.MaxTextLength,
			NoticeInterval: cfg.NoticeInterval(),
			MessageLimit:   cfg.Limits.ChatMessageLimit,
		},
		pipeline.Dependencies{
			Filter:    newSanitizer(cfg),
			Admission: newAdmissionController(cfg),
			Cache:     store,
			Queue:     jobs,
			Outputs:   outputs,
			Notifier:  notifier,
			Metrics:   pipelineMetrics,
		},
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	synthWorker, err := worker.New(
		worker.Config{
			SynthesisTimeout: cfg.SynthesisTimeout(),
			MinAudioBytes:    cfg.TTS.MinAudioBytes,
		},
		worker.Dependencies{
			Queue:       jobs,
			Synthesizer: synthesizer,
			Cache:       store,
			Outputs:     outputs,
			Publisher:   worker.NewNatsResultPublisher(natsConnection, cfg.NATS.AudioReadySubject),
			Metrics:     pipelineMetrics,
		},
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	listener := chat.NewListener(
		natsConnection,
		cfg.NATS.ChatSubject,
		newRouter(cfg),
		coordinator,
		notifier,
		log,
	)

	log.System("Chat TTS service started for channel %s: chat=%s notices=%s engine=%s cache=%s queue=%s (capacity %d)",
		cfg.Channel.Name, cfg.NATS.ChatSubject, cfg.NATS.NoticeSubject,
		cfg.TTS.Engine, cfg.Cache.Backend, cfg.Paths.QueueDir, jobs.Cap())

	var serveMetrics func(context.Context) error
	if cfg.Metrics.ListenAddr != "" {
		serveMetrics = func(ctx context.Context) error {
			return metrics.Serve(ctx, cfg.Metrics.ListenAddr, registry, log)
		}
	}

	runErr := runTasks(ctx, log, jobs.Close, listener.Run, synthWorker.Run, serveMetrics)

	log.System("Chat TTS service stopped.")

	return runErr
}

// runTasks runs the chat listener, the synthesis worker and the optional
// metrics server until ctx is cancelled or one of them fails. The worker
// outlives the listener: once the listener has stopped, the queue is closed
// and the worker is stopped, so no accepted job is left without output.
func runTasks(
	ctx context.Context,
	log *logger.Logger,
	closeQueue func(),
	listen, work, serveMetrics func(context.Context) error,
) error {
	group, groupCtx := errgroup.WithContext(ctx)

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	group.Go(func() error {
		defer stopWorker()
		defer closeQueue()

		return logTaskErr(log, "chat listener", listen(groupCtx))
	})

	group.Go(func() error {
		return logTaskErr(log, "synthesis worker", work(workerCtx))
	})

	if serveMetrics != nil {
		group.Go(func() error {
			return logTaskErr(log, "metrics server", serveMetrics(groupCtx))
		})
	}

	return group.Wait()
}

func logTaskErr(log *logger.Logger, name string, err error) error {
	if err != nil {
		log.Error("The %s failed: %v", name, err)

		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
