// Package config_test tests the configuration loading for the chat TTS service.
package config_test

import (
	"testing"

	"github.com/book-expert/chat-tts-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[nats]
url = "nats://127.0.0.1:4222"
chat_subject = "twitch.chat"
notice_subject = "twitch.notices"
audio_ready_subject = "tts.ready"
cache_bucket = "AUDIO_CACHE"

[channel]
name = "streamer"
reward_id = "abc-123"

[access]
free_for_mods = false
free_for_subscribers = true

[limits]
cooldown_viewers_seconds = 600
global_queue_limit = 4

[tts_service]
engine = "http"
service_url = "http://127.0.0.1:8000"
timeout_seconds = 20

[cache]
backend = "sqlite"
sqlite_path = "/var/lib/tts/cache.db"
`

	cfg := config.Default()

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "twitch.chat", cfg.NATS.ChatSubject)
	assert.Equal(t, "twitch.notices", cfg.NATS.NoticeSubject)
	assert.Equal(t, "tts.ready", cfg.NATS.AudioReadySubject)
	assert.Equal(t, "AUDIO_CACHE", cfg.NATS.CacheBucket)
	assert.Equal(t, "streamer", cfg.Channel.Name)
	assert.Equal(t, "abc-123", cfg.Channel.RewardID)
	assert.False(t, cfg.Access.FreeForMods)
	assert.True(t, cfg.Access.FreeForSubscribers)
	assert.True(t, cfg.Access.FreeForBroadcaster, "absent keys keep their defaults")
	assert.Equal(t, 600, cfg.Limits.CooldownViewersSeconds)
	assert.Equal(t, 30, cfg.Limits.CooldownModsSeconds)
	assert.Equal(t, 4, cfg.Limits.GlobalQueueLimit)
	assert.Equal(t, 8, cfg.QueueCapacity())
	assert.Equal(t, "http", cfg.TTS.Engine)
	assert.Equal(t, 20, cfg.TTS.TimeoutSeconds)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	require.NoError(t, cfg.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.QueueCapacity())
	assert.Equal(t, 480, cfg.Limits.ChatMessageLimit)
	assert.Equal(t, "30s", cfg.SynthesisTimeout().String())
	assert.Equal(t, "1m0s", cfg.Window().String())
	assert.Equal(t, "10s", cfg.NoticeInterval().String())
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{
			name:    "zero queue limit",
			mutate:  func(cfg *config.Config) { cfg.Limits.GlobalQueueLimit = 0 },
			wantErr: config.ErrNonPositiveLimit,
		},
		{
			name:    "negative timeout",
			mutate:  func(cfg *config.Config) { cfg.TTS.TimeoutSeconds = -1 },
			wantErr: config.ErrNonPositiveLimit,
		},
		{
			name:    "unknown engine",
			mutate:  func(cfg *config.Config) { cfg.TTS.Engine = "espeak" },
			wantErr: config.ErrUnknownEngine,
		},
		{
			name:    "http engine without url",
			mutate:  func(cfg *config.Config) { cfg.TTS.Engine = config.EngineHTTP },
			wantErr: config.ErrMissingPath,
		},
		{
			name:    "unknown cache backend",
			mutate:  func(cfg *config.Config) { cfg.Cache.Backend = "redis" },
			wantErr: config.ErrUnknownCacheBackend,
		},
		{
			name:    "empty queue dir",
			mutate:  func(cfg *config.Config) { cfg.Paths.QueueDir = "" },
			wantErr: config.ErrMissingPath,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(&cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestApplyEnv_OverridesUsingBotVariableNames(t *testing.T) {
	t.Setenv("COOLDOWN_VIEWERS", "45")
	t.Setenv("GLOBAL_QUEUE_LIMIT", "3")
	t.Setenv("FREE_FOR_SUBSCRIBERS", "true")
	t.Setenv("TWITCH_REWARD_ID", "reward-42")
	t.Setenv("QUEUE_DIR", "/tmp/queue")

	cfg := config.Default()

	err := config.ApplyEnv(&cfg)
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Limits.CooldownViewersSeconds)
	assert.Equal(t, 3, cfg.Limits.GlobalQueueLimit)
	assert.True(t, cfg.Access.FreeForSubscribers)
	assert.Equal(t, "reward-42", cfg.Channel.RewardID)
	assert.Equal(t, "/tmp/queue", cfg.Paths.QueueDir)
	assert.Equal(t, 120, cfg.Limits.CooldownSubsSeconds, "unset variables keep the configured value")
}
