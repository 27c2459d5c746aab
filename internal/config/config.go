// Package config defines service configuration and its loading.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and env vars on top.
// - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CatalogPath points to a YAML menu. Empty uses the embedded menu.
	CatalogPath string `koanf:"catalog_path"`

	// Seed fixes the random source. Zero seeds from the clock.
	Seed uint64 `koanf:"seed"`

	// SpinSteps is the number of cosmetic churn picks per spin.
	SpinSteps int `koanf:"spin_steps"`
	// SpinInitialMS is the pause before the second churn pick.
	SpinInitialMS int `koanf:"spin_initial_ms"`
	// SpinIncreaseUS grows the pause by this many microseconds per step taken.
	SpinIncreaseUS int `koanf:"spin_increase_us"`
	// SpinAutoStop settles a spin on its last churn pick when the schedule ends.
	SpinAutoStop bool `koanf:"spin_auto_stop"`

	// MaxSessions caps sessions held in memory.
	MaxSessions int `koanf:"max_sessions"`
	// SessionTTLSeconds evicts sessions untouched for this long.
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`
	// DedupeSize bounds remembered command request ids.
	DedupeSize int `koanf:"dedupe_size"`

	// QueueSize bounds the draw history queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of history writers.
	WorkerCount int `koanf:"worker_count"`

	// DBPath is the sqlite file for preferences and history. ":memory:" keeps
	// everything in process.
	DBPath string `koanf:"db_path"`
	// MaxHistoryLimit caps GET /history?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// TelegramToken enables the telegram webhook when set.
	TelegramToken string `koanf:"telegram_token"`
	// TelegramWebhookURL is registered with Telegram on startup when set.
	TelegramWebhookURL string `koanf:"telegram_webhook_url"`
	// TelegramSecretToken is checked against the secret token header of every
	// webhook call when set.
	TelegramSecretToken string `koanf:"telegram_secret_token"`
	// TelegramAllowedUsers restricts the bot to these user ids. Empty allows everyone.
	TelegramAllowedUsers []int64 `koanf:"telegram_allowed_users"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		SpinSteps:         30,
		SpinInitialMS:     30,
		SpinIncreaseUS:    500,
		SpinAutoStop:      true,
		MaxSessions:       10_000,
		SessionTTLSeconds: 1800,
		DedupeSize:        50_000,
		QueueSize:         10_000,
		WorkerCount:       2,
		DBPath:            "whattoeat.db",
		MaxHistoryLimit:   100,
	}
}

// SpinInitial returns SpinInitialMS as a duration.
func (c *Config) SpinInitial() time.Duration {
	return time.Duration(c.SpinInitialMS) * time.Millisecond
}

// SpinIncrease returns SpinIncreaseUS as a duration.
func (c *Config) SpinIncrease() time.Duration {
	return time.Duration(c.SpinIncreaseUS) * time.Microsecond
}

// SessionTTL returns SessionTTLSeconds as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
