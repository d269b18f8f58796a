// Package config provides the configuration structure for the chat TTS service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/caarlos0/env/v11"
)

// Supported synthesis engines.
const (
	EngineCommand = "command"
	EngineHTTP    = "http"
)

// Supported cache backends.
const (
	CacheBackendDisk   = "disk"
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
	CacheBackendNATS   = "nats"
)

var (
	// ErrNonPositiveLimit indicates that a limit or duration is zero or negative.
	ErrNonPositiveLimit = errors.New("value must be positive")
	// ErrUnknownEngine indicates an unsupported tts_service.engine value.
	ErrUnknownEngine = errors.New("unknown synthesis engine")
	// ErrUnknownCacheBackend indicates an unsupported cache.backend value.
	ErrUnknownCacheBackend = errors.New("unknown cache backend")
	// ErrMissingPath indicates that a required directory or file path is empty.
	ErrMissingPath = errors.New("path cannot be empty")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL               string `toml:"url"                 env:"NATS_URL"`
	ChatSubject       string `toml:"chat_subject"        env:"NATS_CHAT_SUBJECT"`
	NoticeSubject     string `toml:"notice_subject"      env:"NATS_NOTICE_SUBJECT"`
	AudioReadySubject string `toml:"audio_ready_subject" env:"NATS_AUDIO_READY_SUBJECT"`
	CacheBucket       string `toml:"cache_bucket"        env:"NATS_CACHE_BUCKET"`
}

// ChannelConfig identifies the chat channel served by the bot.
type ChannelConfig struct {
	Name     string `toml:"name"      env:"TWITCH_CHANNEL"`
	RewardID string `toml:"reward_id" env:"TWITCH_REWARD_ID"`
}

// AccessConfig selects which roles get the privileged cooldown tiers.
type AccessConfig struct {
	FreeForMods        bool `toml:"free_for_mods"        env:"FREE_FOR_MODS"`
	FreeForBroadcaster bool `toml:"free_for_broadcaster" env:"FREE_FOR_BROADCASTER"`
	FreeForSubscribers bool `toml:"free_for_subscribers" env:"FREE_FOR_SUBSCRIBERS"`
}

// LimitsConfig holds the anti-spam limits.
type LimitsConfig struct {
	CooldownModsSeconds    int `toml:"cooldown_mods_seconds"    env:"COOLDOWN_MODS"`
	CooldownSubsSeconds    int `toml:"cooldown_subs_seconds"    env:"COOLDOWN_SUBS"`
	CooldownViewersSeconds int `toml:"cooldown_viewers_seconds" env:"COOLDOWN_VIEWERS"`
	GlobalQueueLimit       int `toml:"global_queue_limit"       env:"GLOBAL_QUEUE_LIMIT"`
	WindowSeconds          int `toml:"window_seconds"           env:"GLOBAL_WINDOW_SECONDS"`
	MaxTextLength          int `toml:"max_text_length"          env:"MAX_TEXT_LENGTH"`
	NoticeIntervalSeconds  int `toml:"notice_interval_seconds"  env:"NOTICE_INTERVAL_SECONDS"`
	ChatMessageLimit       int `toml:"chat_message_limit"       env:"CHAT_MESSAGE_LIMIT"`
}

// TTSServiceConfig holds the configuration of the synthesis engine.
type TTSServiceConfig struct {
	Engine         string   `toml:"engine"          env:"TTS_ENGINE"`
	BinaryPath     string   `toml:"binary_path"     env:"TTS_BINARY"`
	Args           []string `toml:"args"            env:"TTS_ARGS"`
	ServiceURL     string   `toml:"service_url"     env:"TTS_SERVICE_URL"`
	Language       string   `toml:"language"        env:"TTS_LANGUAGE"`
	TimeoutSeconds int      `toml:"timeout_seconds" env:"TTS_TIMEOUT_SECONDS"`
	MinAudioBytes  int      `toml:"min_audio_bytes" env:"TTS_MIN_AUDIO_BYTES"`
}

// CacheConfig selects and configures the content cache backend.
type CacheConfig struct {
	Backend    string `toml:"backend"     env:"CACHE_BACKEND"`
	Dir        string `toml:"dir"         env:"CACHE_DIR"`
	SQLitePath string `toml:"sqlite_path" env:"CACHE_SQLITE_PATH"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir" env:"LOGS_DIR"`
	QueueDir    string `toml:"queue_dir"     env:"QUEUE_DIR"`
}

// FilterConfig tunes the content filter.
type FilterConfig struct {
	BlockedWords     []string `toml:"blocked_words"      env:"FILTER_BLOCKED_WORDS"`
	AllowedLinkHosts []string `toml:"allowed_link_hosts" env:"FILTER_ALLOWED_LINK_HOSTS"`
	MaxCapsRatio     float64  `toml:"max_caps_ratio"     env:"FILTER_MAX_CAPS_RATIO"`
}

// MetricsConfig holds the Prometheus exposition settings.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr" env:"METRICS_ADDR"`
}

// Config is the root configuration structure.
type Config struct {
	NATS    NATSConfig       `toml:"nats"`
	Channel ChannelConfig    `toml:"channel"`
	Access  AccessConfig     `toml:"access"`
	Limits  LimitsConfig     `toml:"limits"`
	TTS     TTSServiceConfig `toml:"tts_service"`
	Cache   CacheConfig      `toml:"cache"`
	Paths   PathsConfig      `toml:"paths"`
	Filter  FilterConfig     `toml:"filter"`
	Metrics MetricsConfig    `toml:"metrics"`
}

// Default returns the configuration used when a key is absent from both the
// TOML document and the environment.
func Default() Config {
	return Config{
		NATS: NATSConfig{
			URL:               "nats://127.0.0.1:4222",
			ChatSubject:       "chat.messages",
			NoticeSubject:     "chat.notices",
			AudioReadySubject: "tts.audio.ready",
			CacheBucket:       "TTS_CACHE",
		},
		Access: AccessConfig{
			FreeForMods:        true,
			FreeForBroadcaster: true,
			FreeForSubscribers: false,
		},
		Limits: LimitsConfig{
			CooldownModsSeconds:    30,
			CooldownSubsSeconds:    120,
			CooldownViewersSeconds: 300,
			GlobalQueueLimit:       10,
			WindowSeconds:          60,
			MaxTextLength:          150,
			NoticeIntervalSeconds:  10,
			ChatMessageLimit:       480,
		},
		TTS: TTSServiceConfig{
			Engine:     EngineCommand,
			BinaryPath: "tts",
			Args: []string{
				"--model_name", "tts_models/multilingual/multi-dataset/xtts_v2",
				"--text", "{text}",
				"--speaker_idx", "Claribel Dervla",
				"--language_idx", "ru",
				"--out_path", "{output}",
			},
			Language:       "ru",
			TimeoutSeconds: 30,
			MinAudioBytes:  1000,
		},
		Cache: CacheConfig{
			Backend:    CacheBackendDisk,
			Dir:        "cache",
			SQLitePath: "cache/tts-cache.db",
		},
		Paths: PathsConfig{
			BaseLogsDir: "logs",
			QueueDir:    "audio_queue",
		},
		Filter: FilterConfig{
			AllowedLinkHosts: []string{"twitch.tv", "youtube.com"},
			MaxCapsRatio:     0.7,
		},
	}
}

// Load loads the configuration for the chat TTS service. Values come from
// Default, then the configurator's TOML document, then environment overrides.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	envErr := ApplyEnv(&cfg)
	if envErr != nil {
		return nil, envErr
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// ApplyEnv overrides cfg with any of its environment variables that are set.
func ApplyEnv(cfg *Config) error {
	err := env.Parse(cfg)
	if err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return nil
}

// Validate checks that limits are usable and names refer to known implementations.
func (c *Config) Validate() error {
	positives := []struct {
		name  string
		value int
	}{
		{"limits.cooldown_mods_seconds", c.Limits.CooldownModsSeconds},
		{"limits.cooldown_subs_seconds", c.Limits.CooldownSubsSeconds},
		{"limits.cooldown_viewers_seconds", c.Limits.CooldownViewersSeconds},
		{"limits.global_queue_limit", c.Limits.GlobalQueueLimit},
		{"limits.window_seconds", c.Limits.WindowSeconds},
		{"limits.max_text_length", c.Limits.MaxTextLength},
		{"limits.notice_interval_seconds", c.Limits.NoticeIntervalSeconds},
		{"limits.chat_message_limit", c.Limits.ChatMessageLimit},
		{"tts_service.timeout_seconds", c.TTS.TimeoutSeconds},
	}

	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s = %d", ErrNonPositiveLimit, p.name, p.value)
		}
	}

	switch c.TTS.Engine {
	case EngineCommand:
		if c.TTS.BinaryPath == "" {
			return fmt.Errorf("%w: tts_service.binary_path", ErrMissingPath)
		}
	case EngineHTTP:
		if c.TTS.ServiceURL == "" {
			return fmt.Errorf("%w: tts_service.service_url", ErrMissingPath)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.TTS.Engine)
	}

	switch c.Cache.Backend {
	case CacheBackendDisk:
		if c.Cache.Dir == "" {
			return fmt.Errorf("%w: cache.dir", ErrMissingPath)
		}
	case CacheBackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("%w: cache.sqlite_path", ErrMissingPath)
		}
	case CacheBackendMemory, CacheBackendNATS:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCacheBackend, c.Cache.Backend)
	}

	if c.Paths.QueueDir == "" {
		return fmt.Errorf("%w: paths.queue_dir", ErrMissingPath)
	}

	return nil
}

// QueueCapacity is the job queue capacity, twice the global window limit.
func (c *Config) QueueCapacity() int {
	return 2 * c.Limits.GlobalQueueLimit
}

// SynthesisTimeout returns the per-job synthesis deadline.
func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.TTS.TimeoutSeconds) * time.Second
}

// Window returns the length of the global admission window.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Limits.WindowSeconds) * time.Second
}

// NoticeInterval returns the minimum spacing between cooldown notices.
func (c *Config) NoticeInterval() time.Duration {
	return time.Duration(c.Limits.NoticeIntervalSeconds) * time.Second
}
