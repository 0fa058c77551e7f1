package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envSpec is the environment-only configuration surface. It covers the
// settings a hosted deployment usually injects; everything else keeps its
// default.
type envSpec struct {
	ResendAPIKey    string        `envconfig:"RESEND_API_KEY"`
	From            string        `envconfig:"RESEND_FROM_EMAIL"`
	Secret          string        `envconfig:"ELEVENLABS_WEBHOOK_SECRET"`
	Recipients      []string      `envconfig:"INTAKE_RECIPIENTS"`
	Listen          string        `envconfig:"INTAKE_LISTEN"`
	WebhookPath     string        `envconfig:"INTAKE_WEBHOOK_PATH"`
	Channel         string        `envconfig:"INTAKE_CHANNEL"`
	DevMode         bool          `envconfig:"INTAKE_DEV_MODE"`
	StatePath       string        `envconfig:"INTAKE_STATE_PATH"`
	DedupeTTL       time.Duration `envconfig:"INTAKE_DEDUPE_TTL"`
	OutboxDir       string        `envconfig:"INTAKE_OUTBOX_DIR"`
	SlackWebhookURL string        `envconfig:"INTAKE_SLACK_WEBHOOK_URL"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
}

// FromEnv builds a configuration from environment variables after loading
// the given dotenv files (".env" when none are given). Missing dotenv files
// are ignored; variables already set in the environment win over them.
// The ledger is disabled unless INTAKE_STATE_PATH is set.
func FromEnv(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var spec envSpec
	if err := envconfig.Process("", &spec); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := Defaults()
	cfg.State.Path = spec.StatePath
	cfg.Service.DevMode = spec.DevMode
	cfg.Service.DedupeTTL = spec.DedupeTTL
	cfg.Webhook.Secret = spec.Secret
	cfg.Notify.Resend.APIKey = spec.ResendAPIKey
	cfg.Notify.From = spec.From
	cfg.Notify.To = splitRecipients(spec.Recipients)
	cfg.Notify.Slack.WebhookURL = spec.SlackWebhookURL

	setIf(&cfg.Service.LogLevel, spec.LogLevel)
	setIf(&cfg.Webhook.Listen, spec.Listen)
	setIf(&cfg.Webhook.Path, spec.WebhookPath)
	setIf(&cfg.Notify.Channel, spec.Channel)
	setIf(&cfg.Notify.Dir.Path, spec.OutboxDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// splitRecipients trims each comma-separated entry and drops empty ones, so
// "a@x.com, b@y.com," yields two clean addresses.
func splitRecipients(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
