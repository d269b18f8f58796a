package main

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/chat-tts-service/internal/admission"
	"github.com/book-expert/chat-tts-service/internal/cache"
	"github.com/book-expert/chat-tts-service/internal/chat"
	"github.com/book-expert/chat-tts-service/internal/config"
	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/objectstore"
	"github.com/book-expert/chat-tts-service/internal/text"
	"github.com/book-expert/chat-tts-service/internal/tts"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

// newCacheStore builds the configured cache backend. The returned func
// releases backend resources.
func newCacheStore(cfg *config.Config, natsConnection *nats.Conn) (*cache.Cache, func(), error) {
	noop := func() {}

	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return cache.New(cache.NewMemoryStore()), noop, nil
	case config.CacheBackendSQLite:
		store, err := cache.NewSQLiteStore(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open sqlite cache: %w", err)
		}

		return cache.New(store), func() { _ = store.Close() }, nil
	case config.CacheBackendNATS:
		jetstreamContext, err := natsConnection.JetStream()
		if err != nil {
			return nil, noop, fmt.Errorf("failed to get JetStream context: %w", err)
		}

		objects, err := objectstore.New(jetstreamContext, cfg.NATS.CacheBucket)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open cache bucket: %w", err)
		}

		return cache.New(cache.NewRemoteStore(objects)), noop, nil
	default:
		store, err := cache.NewDiskStore(cfg.Cache.Dir)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open disk cache: %w", err)
		}

		return cache.New(store), noop, nil
	}
}

// newSynthesizer builds the configured engine. The HTTP engine is health
// checked once; an unhealthy service is logged, not fatal, since failed jobs
// degrade to fallback audio.
func newSynthesizer(ctx context.Context, cfg *config.Config, log *logger.Logger) (core.Synthesizer, error) {
	switch cfg.TTS.Engine {
	case config.EngineHTTP:
		synthesizer := tts.NewHTTPSynthesizer(tts.HTTPConfig{
			BaseURL:       cfg.TTS.ServiceURL,
			Language:      cfg.TTS.Language,
			Timeout:       cfg.SynthesisTimeout(),
			MinAudioBytes: cfg.TTS.MinAudioBytes,
		})

		healthErr := synthesizer.HealthCheck(ctx)
		if healthErr != nil {
			log.Warn("TTS service is not healthy yet: %v", healthErr)
		}

		return synthesizer, nil
	default:
		synthesizer, err := tts.NewCommandSynthesizer(tts.CommandConfig{
			BinaryPath:    cfg.TTS.BinaryPath,
			Args:          cfg.TTS.Args,
			MinAudioBytes: cfg.TTS.MinAudioBytes,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create command synthesizer: %w", err)
		}

		return synthesizer, nil
	}
}

func newAdmissionController(cfg *config.Config) *admission.Controller {
	return admission.NewController(admission.Policy{
		CooldownMods:       secondsToDuration(cfg.Limits.CooldownModsSeconds),
		CooldownSubs:       secondsToDuration(cfg.Limits.CooldownSubsSeconds),
		CooldownViewers:    secondsToDuration(cfg.Limits.CooldownViewersSeconds),
		FreeForMods:        cfg.Access.FreeForMods,
		FreeForSubscribers: cfg.Access.FreeForSubscribers,
		GlobalLimit:        cfg.Limits.GlobalQueueLimit,
		Window:             cfg.Window(),
	})
}

func newSanitizer(cfg *config.Config) *text.Sanitizer {
	return text.NewSanitizer(text.Options{
		BlockedWords:     cfg.Filter.BlockedWords,
		AllowedLinkHosts: cfg.Filter.AllowedLinkHosts,
		MaxCapsRatio:     cfg.Filter.MaxCapsRatio,
	})
}

func newRouter(cfg *config.Config) *chat.Router {
	return chat.NewRouter(cfg.Channel.Name, cfg.Channel.RewardID, chat.AccessRules{
		RewardEnabled:      cfg.Channel.RewardID != "",
		FreeForBroadcaster: cfg.Access.FreeForBroadcaster,
		FreeForMods:        cfg.Access.FreeForMods,
		FreeForSubscribers: cfg.Access.FreeForSubscribers,
		CooldownSubs:       cfg.Limits.CooldownSubsSeconds,
		CooldownViewers:    cfg.Limits.CooldownViewersSeconds,
	})
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
