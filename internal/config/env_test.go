package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearIntakeEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RESEND_API_KEY", "RESEND_FROM_EMAIL", "ELEVENLABS_WEBHOOK_SECRET",
		"INTAKE_RECIPIENTS", "INTAKE_LISTEN", "INTAKE_WEBHOOK_PATH", "INTAKE_CHANNEL",
		"INTAKE_DEV_MODE", "INTAKE_STATE_PATH", "INTAKE_DEDUPE_TTL", "INTAKE_OUTBOX_DIR",
		"INTAKE_SLACK_WEBHOOK_URL", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnv(t *testing.T) {
	clearIntakeEnv(t)
	t.Setenv("RESEND_API_KEY", "re_123")
	t.Setenv("RESEND_FROM_EMAIL", "intake@example.com")
	t.Setenv("ELEVENLABS_WEBHOOK_SECRET", "wsec")
	t.Setenv("INTAKE_RECIPIENTS", "a@example.com,b@example.com")
	t.Setenv("INTAKE_DEDUPE_TTL", "5m")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "re_123", cfg.Notify.Resend.APIKey)
	assert.Equal(t, "intake@example.com", cfg.Notify.From)
	assert.Equal(t, "wsec", cfg.Webhook.Secret)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.To)
	assert.Equal(t, 5*time.Minute, cfg.Service.DedupeTTL)
	assert.Equal(t, "warn", cfg.Service.LogLevel)
	assert.Empty(t, cfg.State.Path, "ledger disabled without INTAKE_STATE_PATH")
	assert.Equal(t, "127.0.0.1:8081", cfg.Webhook.Listen)
	assert.Empty(t, cfg.SourcePath)
}

func TestFromEnv_RecipientsTrimmed(t *testing.T) {
	clearIntakeEnv(t)
	t.Setenv("INTAKE_CHANNEL", "dir")
	t.Setenv("RESEND_FROM_EMAIL", "intake@example.com")
	t.Setenv("INTAKE_RECIPIENTS", "a@example.com, b@example.com ,,")

	cfg, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.To)
}

func TestFromEnv_DotenvFile(t *testing.T) {
	clearIntakeEnv(t)
	// Real environment wins over the dotenv file.
	t.Setenv("INTAKE_CHANNEL", "dir")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"INTAKE_CHANNEL=slack\n"+
			"RESEND_FROM_EMAIL=intake@example.com\n"+
			"INTAKE_RECIPIENTS=desk@example.com\n"+
			"INTAKE_OUTBOX_DIR=/tmp/intake-outbox\n"+
			"INTAKE_DEV_MODE=true\n"), 0o600))

	cfg, err := FromEnv(envFile)
	require.NoError(t, err)

	assert.Equal(t, ChannelDir, cfg.Notify.Channel)
	assert.Equal(t, "/tmp/intake-outbox", cfg.Notify.Dir.Path)
	assert.True(t, cfg.Service.DevMode)
}

func TestFromEnv_Invalid(t *testing.T) {
	clearIntakeEnv(t)
	t.Setenv("INTAKE_CHANNEL", "resend")

	_, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify.resend.api_key is required")
}
