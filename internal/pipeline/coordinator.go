// Package pipeline wires a chat request through filtering, admission, the
// content cache and the job queue, and reports the outcome to the requester.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/book-expert/chat-tts-service/internal/admission"
	"github.com/book-expert/chat-tts-service/internal/cache"
	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/metrics"
	"github.com/book-expert/chat-tts-service/internal/queue"
	"github.com/book-expert/chat-tts-service/internal/spool"
	"github.com/book-expert/logger"
	"golang.org/x/time/rate"
)

const (
	defaultMinTextLength  = 3
	defaultNoticeInterval = 10 * time.Second
	defaultMessageLimit   = 480
	notifyTimeout         = 5 * time.Second
	logPreviewRunes       = 60
)

// ErrMissingDependency indicates that a required collaborator was nil.
var ErrMissingDependency = errors.New("pipeline dependency cannot be nil")

// Filter is the content filter. Sanitize and Normalize must be deterministic
// and idempotent; Normalize produces the text that is hashed and synthesized.
type Filter interface {
	Sanitize(input string, maxLength int) string
	Normalize(input string, maxLength int) string
	IsAllowed(input string) bool
}

// Request is one inbound chat request.
type Request struct {
	Identity           string
	Roles              admission.Roles
	Text               string
	IsRewardRedemption bool
}

// Config holds the coordinator limits.
type Config struct {
	MaxTextLength  int
	MinTextLength  int
	NoticeInterval time.Duration
	MessageLimit   int
}

// Dependencies are the collaborators of a Coordinator. Notifier, Metrics and
// Clock are optional.
type Dependencies struct {
	Filter    Filter
	Admission *admission.Controller
	Cache     *cache.Cache
	Queue     *queue.Queue
	Outputs   *spool.Spool
	Notifier  core.Notifier
	Metrics   *metrics.Metrics
	Clock     func() time.Time
}

// Coordinator runs submissions through the pipeline. Submit is safe for
// concurrent use.
type Coordinator struct {
	config        Config
	filter        Filter
	admission     *admission.Controller
	cache         *cache.Cache
	queue         *queue.Queue
	outputs       *spool.Spool
	notifier      core.Notifier
	metrics       *metrics.Metrics
	clock         func() time.Time
	noticeLimiter *rate.Limiter
	log           *logger.Logger
}

// New creates a Coordinator.
func New(cfg Config, deps Dependencies, log *logger.Logger) (*Coordinator, error) {
	if deps.Filter == nil || deps.Admission == nil || deps.Cache == nil ||
		deps.Queue == nil || deps.Outputs == nil || log == nil {
		return nil, ErrMissingDependency
	}

	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = defaultMinTextLength
	}

	if cfg.NoticeInterval <= 0 {
		cfg.NoticeInterval = defaultNoticeInterval
	}

	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = defaultMessageLimit
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Coordinator{
		config:        cfg,
		filter:        deps.Filter,
		admission:     deps.Admission,
		cache:         deps.Cache,
		queue:         deps.Queue,
		outputs:       deps.Outputs,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		clock:         clock,
		noticeLimiter: rate.NewLimiter(rate.Every(cfg.NoticeInterval), 1),
		log:           log,
	}, nil
}

// Submit runs req through filter, admission, cache and queue, short-circuiting
// at the first failure.
func (c *Coordinator) Submit(ctx context.Context, req Request) Status {
	status := c.submit(ctx, req)

	c.metrics.ObserveSubmission(status.Kind.String(), status.Reason.String())

	return status
}

func (c *Coordinator) submit(ctx context.Context, req Request) Status {
	now := c.clock()

	// A redemption is paid for, so it clears the cooldown whatever happens next.
	if req.IsRewardRedemption {
		c.admission.ResetCooldown(req.Identity)
	}

	clean := c.filter.Sanitize(req.Text, c.config.MaxTextLength)
	if utf8.RuneCountInString(clean) < c.config.MinTextLength {
		c.log.Info("Skipped short message from %s", req.Identity)

		return Status{Kind: KindSkipped, Reason: ReasonTooShort}
	}

	if !c.filter.IsAllowed(clean) {
		if req.IsRewardRedemption {
			c.log.Info("Ignored filtered reward redemption from %s", req.Identity)

			return Status{Kind: KindSkipped, Reason: ReasonFiltered}
		}

		c.log.Info("Rejected filtered message from %s", req.Identity)

		return Status{
			Kind:   KindRejected,
			Reason: ReasonFiltered,
			Notice: c.notify(ctx, filteredNotice(req.Identity)),
		}
	}

	var tier admission.Tier

	if !req.IsRewardRedemption {
		var decideErr error

		tier, decideErr = c.admission.Decide(req.Identity, req.Roles, now)
		if decideErr != nil {
			return c.rejectAdmission(ctx, req, now, tier, decideErr)
		}
	}

	normalized := c.filter.Normalize(clean, c.config.MaxTextLength)
	key := cache.Key(normalized)
	outputPath := c.outputs.NextPath(now)

	materializeErr := c.cache.Materialize(ctx, key, outputPath)
	if materializeErr == nil {
		c.metrics.ObserveCacheLookup(true)
		c.log.Info("Served %s from cache: %q", req.Identity, preview(normalized))

		return Status{
			Kind:       KindDone,
			Reason:     ReasonCached,
			Tier:       tier,
			CacheKey:   key,
			OutputPath: outputPath,
		}
	}

	c.metrics.ObserveCacheLookup(false)

	if !errors.Is(materializeErr, cache.ErrNotFound) {
		c.log.Warn("Cache lookup failed for %s, synthesizing instead: %v", req.Identity, materializeErr)
	}

	return c.enqueue(ctx, req, now, tier, normalized, key, outputPath)
}

func (c *Coordinator) rejectAdmission(
	ctx context.Context,
	req Request,
	now time.Time,
	tier admission.Tier,
	decideErr error,
) Status {
	var (
		cooldownErr *admission.CooldownError
		fullErr     *admission.QueueFullError
	)

	switch {
	case errors.As(decideErr, &cooldownErr):
		status := Status{
			Kind:             KindRejected,
			Reason:           ReasonOnCooldown,
			Tier:             tier,
			RemainingSeconds: cooldownErr.RemainingSeconds(),
		}

		if c.noticeLimiter.AllowN(now, 1) {
			status.Notice = c.notify(ctx, cooldownNotice(req.Identity, status.RemainingSeconds))
		} else {
			c.metrics.NoticeSuppressed()
		}

		return status
	case errors.As(decideErr, &fullErr):
		c.log.Info("Global window full (%d/%d), rejected %s", fullErr.Current, fullErr.Limit, req.Identity)

		return Status{
			Kind:    KindRejected,
			Reason:  ReasonQueueFull,
			Tier:    tier,
			Current: fullErr.Current,
			Limit:   fullErr.Limit,
			Notice:  c.notify(ctx, windowFullNotice(req.Identity, fullErr.Current, fullErr.Limit)),
		}
	default:
		c.log.Error("Unexpected admission error for %s: %v", req.Identity, decideErr)

		return Status{Kind: KindRejected, Reason: ReasonUnavailable, Tier: tier}
	}
}

func (c *Coordinator) enqueue(
	ctx context.Context,
	req Request,
	now time.Time,
	tier admission.Tier,
	normalized, key, outputPath string,
) Status {
	job := queue.NewJob(normalized, key, outputPath, req.Identity, now)

	enqueueErr := c.queue.Enqueue(job)
	if enqueueErr != nil {
		if errors.Is(enqueueErr, queue.ErrQueueFull) {
			c.log.Warn("Job queue full (%d), rejected %s", c.queue.Cap(), req.Identity)

			return Status{
				Kind:   KindRejected,
				Reason: ReasonQueueFull,
				Tier:   tier,
				Notice: c.notify(ctx, queueFullNotice(req.Identity)),
			}
		}

		c.log.Error("Failed to enqueue job for %s: %v", req.Identity, enqueueErr)

		return Status{
			Kind:   KindRejected,
			Reason: ReasonUnavailable,
			Tier:   tier,
			Notice: c.notify(ctx, unavailableNotice(req.Identity)),
		}
	}

	position := c.queue.Len()
	c.metrics.SetQueueDepth(position)

	kind := "chat"
	if req.IsRewardRedemption {
		kind = "reward"
	}

	c.log.Info("Queued job %s [%s] %s (%s) at position %d: %q",
		job.ID, kind, req.Identity, tier, position, preview(normalized))

	status := Status{
		Kind:       KindAccepted,
		Tier:       tier,
		Position:   position,
		JobID:      job.ID,
		CacheKey:   key,
		OutputPath: outputPath,
	}

	if !req.IsRewardRedemption {
		status.Notice = c.notify(ctx, queuedNotice(req.Identity, tier))
	}

	return status
}

// notify sends message, truncated to the chat limit, and returns what was
// sent. Delivery failures are logged and do not change the status.
func (c *Coordinator) notify(ctx context.Context, message string) string {
	message = truncateRunes(message, c.config.MessageLimit)

	if c.notifier == nil {
		return message
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	err := c.notifier.Notify(notifyCtx, message)
	if err != nil {
		c.log.Warn("Failed to send chat notice: %v", err)
	}

	return message
}

func preview(text string) string {
	return truncateRunes(text, logPreviewRunes)
}

// String describes the coordinator limits for startup logs.
func (c Config) String() string {
	return fmt.Sprintf("max_text_length=%d min_text_length=%d notice_interval=%s message_limit=%d",
		c.MaxTextLength, c.MinTextLength, c.NoticeInterval, c.MessageLimit)
}
