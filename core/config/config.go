package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminIDs may run admin-only commands and always pass the whitelist.
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"TELEGRAM_ADMIN_IDS"`
	RunMode  string  `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`

	// SecretToken is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// SenderConfig tunes the asynchronous outbound queue. Zero values fall back
// to the sender defaults; a negative max_retries disables retries.
type SenderConfig struct {
	Workers        int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize      int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
	JobTimeoutMS   int `yaml:"job_timeout_ms" envconfig:"SENDER_JOB_TIMEOUT_MS"`
}

// Config aggregates the configuration consumed by the core packages.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sender    SenderConfig    `yaml:"sender"`
}

// Decode fills dst from the YAML file at path and then from the environment.
// A .env file in the working directory is loaded first when present; variables
// already set in the process environment win over it.
func Decode(path string, dst any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// IsAdmin reports whether userID is listed in telegram.admin_ids.
func (c *Config) IsAdmin(userID int64) bool {
	return c != nil && slices.Contains(c.Telegram.AdminIDs, userID)
}

// Normalize validates cfg and fills defaults in place. Every problem found is
// reported, not just the first.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	return errors.Join(
		cfg.Telegram.normalize(),
		cfg.checkRunMode(),
		cfg.RateLimit.normalize(),
	)
}

func (t *TelegramConfig) normalize() error {
	var errs []error
	if strings.TrimSpace(t.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	for _, id := range t.AdminIDs {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("telegram.admin_ids must contain positive user ids, got %d", id))
		}
	}
	if t.LongPollTimeoutSeconds < 0 {
		errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
	}
	switch mode := strings.ToLower(strings.TrimSpace(t.RunMode)); mode {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	case RunModeWebhook:
		t.RunMode = mode
	default:
		errs = append(errs, fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode))
	}
	return errors.Join(errs...)
}

// checkRunMode requires a complete webhook section in webhook mode.
func (c *Config) checkRunMode() error {
	if c.Telegram.RunMode != RunModeWebhook {
		return nil
	}
	var errs []error
	if strings.TrimSpace(c.Webhook.URL) == "" {
		errs = append(errs, errors.New("webhook.url is required in webhook mode"))
	}
	if strings.TrimSpace(c.Webhook.Listen) == "" {
		errs = append(errs, errors.New("webhook.listen is required in webhook mode"))
	}
	if c.Webhook.Port <= 0 || c.Webhook.Port > 65535 {
		errs = append(errs, fmt.Errorf("webhook.port %d is out of range", c.Webhook.Port))
	}
	return errors.Join(errs...)
}

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

func (r *RateLimitConfig) normalize() error {
	var errs []error
	if r.IntervalMS < 0 || r.Burst < 0 {
		errs = append(errs, errors.New("rate_limit.interval_ms and rate_limit.burst must be >= 0"))
	}
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		switch {
		case key == "":
		case slices.Contains(updateKinds, key):
			kinds = append(kinds, key)
		default:
			errs = append(errs, fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(updateKinds, ", ")))
		}
	}
	r.ExcludeUpdates = kinds
	return errors.Join(errs...)
}
