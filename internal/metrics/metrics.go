// Package metrics exposes Prometheus instrumentation for the TTS pipeline.
//
// Label values are drawn from small fixed sets (status and reason names,
// hit/miss, job outcomes), so cardinality stays bounded.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace         = "chat_tts"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Cache lookup results.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

// Job outcomes recorded by the worker.
const (
	JobSynthesized = "synthesized"
	JobCached      = "cached"
	JobFallback    = "fallback"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	submissions       *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	jobs              *prometheus.CounterVec
	synthesisDuration *prometheus.HistogramVec
	queueDepth        prometheus.Gauge
	noticesSuppressed prometheus.Counter
}

// New creates the collectors and registers them with registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Chat submissions by resulting status and reason.",
			},
			[]string{"status", "reason"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Content cache lookups by result.",
			},
			[]string{"result"},
		),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Jobs completed by the synthesis worker, by outcome.",
			},
			[]string{"outcome"},
		),
		synthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Duration of synthesizer calls in seconds.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
			},
			[]string{"outcome"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Jobs waiting for the synthesis worker.",
			},
		),
		noticesSuppressed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cooldown_notices_suppressed_total",
				Help:      "Cooldown notices dropped by the notice rate limit.",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.submissions, m.cacheLookups, m.jobs, m.synthesisDuration, m.queueDepth, m.noticesSuppressed,
	}

	for _, collector := range collectors {
		err := registerer.Register(collector)
		if err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// ObserveSubmission counts one coordinator decision.
func (m *Metrics) ObserveSubmission(status, reason string) {
	if m == nil {
		return
	}

	m.submissions.WithLabelValues(status, reason).Inc()
}

// ObserveCacheLookup counts a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := LookupMiss
	if hit {
		result = LookupHit
	}

	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveJob counts a finished job and, for synthesizer calls, its duration.
func (m *Metrics) ObserveJob(outcome string, synthesisTime time.Duration) {
	if m == nil {
		return
	}

	m.jobs.WithLabelValues(outcome).Inc()

	if outcome != JobCached {
		m.synthesisDuration.WithLabelValues(outcome).Observe(synthesisTime.Seconds())
	}
}

// SetQueueDepth records the current queue length.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}

	m.queueDepth.Set(float64(depth))
}

// NoticeSuppressed counts a throttled cooldown notice.
func (m *Metrics) NoticeSuppressed() {
	if m == nil {
		return
	}

	m.noticesSuppressed.Inc()
}

// Handler returns the exposition handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)

	go func() {
		log.Info("Metrics server listening on %s", addr)

		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", shutdownErr)
	}

	return nil
}
