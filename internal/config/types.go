package config

import (
	"time"

	"github.com/mattjoyce/intake-gw/internal/intake"
)

// Supported notification channels.
const (
	ChannelResend = "resend"
	ChannelDir    = "dir"
	ChannelSlack  = "slack"
)

// Config represents the complete intake-gw configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	Webhook WebhookConfig `yaml:"webhook"`
	Notify  NotifyConfig  `yaml:"notify"`
	Intake  IntakeConfig  `yaml:"intake"`
	Metrics MetricsConfig `yaml:"metrics"`

	// SourcePath is the file the config was loaded from ("" in env mode).
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
	// DevMode skips signature verification. Never enable it in production.
	DevMode   bool          `yaml:"dev_mode"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl" validate:"gte=0"`
}

// StateConfig defines the delivery ledger location. An empty path disables it.
type StateConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig defines the HTTP listener and its routes.
type WebhookConfig struct {
	Listen          string `yaml:"listen" validate:"required,hostname_port"`
	Path            string `yaml:"path" validate:"required,startswith=/"`
	EmailPath       string `yaml:"email_path" validate:"omitempty,startswith=/"`
	Secret          string `yaml:"secret,omitempty"`
	SignatureHeader string `yaml:"signature_header" validate:"required"`
	// MaxBodySize accepts plain bytes or a KB/MB/GB suffix (e.g. "1MB").
	MaxBodySize string `yaml:"max_body_size"`
}

// NotifyConfig defines where intake notifications are delivered.
type NotifyConfig struct {
	Channel       string        `yaml:"channel" validate:"oneof=resend dir slack"`
	From          string        `yaml:"from" validate:"omitempty,mailbox"`
	To            []string      `yaml:"to" validate:"dive,mailbox"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	Resend        ResendConfig  `yaml:"resend"`
	Dir           DirConfig     `yaml:"dir"`
	Slack         SlackConfig   `yaml:"slack"`
}

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

// DirConfig holds settings for the on-disk development channel.
type DirConfig struct {
	Path string `yaml:"path"`
}

// SlackConfig holds the Slack incoming-webhook URL.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// IntakeConfig tunes the field extractor.
type IntakeConfig struct {
	MaxDepth  int            `yaml:"max_depth" validate:"gte=0"`
	Questions []intake.Field `yaml:"questions"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "intake-gw",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/intake.db",
		},
		Webhook: WebhookConfig{
			Listen:          "127.0.0.1:8081",
			Path:            "/api/elevenlabs-webhook",
			EmailPath:       "/api/email",
			SignatureHeader: "X-ElevenLabs-Signature",
			MaxBodySize:     "1MB",
		},
		Notify: NotifyConfig{
			Channel:       ChannelResend,
			SubjectPrefix: "New Patient Intake",
			Timeout:       10 * time.Second,
			Dir:           DirConfig{Path: "./outbox"},
		},
		Intake: IntakeConfig{
			MaxDepth: intake.DefaultMaxDepth,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Schema builds the extractor schema described by the intake section.
func (c *Config) Schema() *intake.Schema {
	questions := c.Intake.Questions
	if questions == nil {
		questions = intake.DefaultQuestions
	}
	return intake.NewSchema(questions, c.Intake.MaxDepth)
}
