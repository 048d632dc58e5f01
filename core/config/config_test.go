package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x", RunMode: " Polling "},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback", "", "MESSAGE"}},
	}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{"callback", "message"}, cfg.RateLimit.ExcludeUpdates)
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{RunMode: "webhook", AdminIDs: []int64{0}},
		Webhook:   WebhookConfig{Port: 70000},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}},
	}
	err := Normalize(cfg)
	require.Error(t, err)
	for _, want := range []string{
		"telegram.token is required",
		"positive user ids",
		"webhook.url is required",
		"webhook.listen is required",
		"webhook.port 70000",
		`exclude_updates value "poll"`,
	} {
		assert.ErrorContains(t, err, want)
	}
	assert.Error(t, Normalize(nil))
}

func TestNormalizeRejectsUnknownRunMode(t *testing.T) {
	err := Normalize(&Config{Telegram: TelegramConfig{Token: "x", RunMode: "push"}})
	assert.ErrorContains(t, err, `invalid telegram.run_mode "push"`)
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{AdminIDs: []int64{7, 9}}}
	assert.True(t, cfg.IsAdmin(9))
	assert.False(t, cfg.IsAdmin(8))
	assert.False(t, (*Config)(nil).IsAdmin(7))
}

func TestDecodeEnvOverridesYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: from-yaml\nsender:\n  workers: 2\n"), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	var cfg Config
	require.NoError(t, Decode(path, &cfg))
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 2, cfg.Sender.Workers)

	assert.Error(t, Decode(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
}
