package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/mattjoyce/intake-gw/internal/config"
	"github.com/mattjoyce/intake-gw/internal/intake"
	"github.com/mattjoyce/intake-gw/internal/ledger"
	"github.com/mattjoyce/intake-gw/internal/notify"
)

// Notifier dispatches rendered intake notifications.
type Notifier interface {
	NotifyIntake(ctx context.Context, fields intake.Fields) (notify.Receipt, error)
	NotifyBasic(ctx context.Context, in notify.BasicIntake) (notify.Receipt, error)
	Channel() string
}

// Ledger records delivery outcomes and answers duplicate lookups.
type Ledger interface {
	Record(ctx context.Context, d ledger.Delivery) (string, error)
	SentSince(ctx context.Context, fingerprint string, since time.Time) (bool, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen string

	// Path receives ElevenLabs post-call payloads.
	Path string

	// EmailPath receives flat camelCase intake bodies. Empty disables it.
	EmailPath string

	// Secret is the shared HMAC secret. Empty disables verification.
	Secret string

	// SignatureHeader carries the lowercase hex HMAC-SHA256 of the body.
	SignatureHeader string

	// MaxBodySize is the maximum allowed request body size in bytes.
	MaxBodySize int64

	// DevMode skips signature verification.
	DevMode bool

	// DedupeTTL suppresses repeat deliveries of the same body. Zero disables it.
	DedupeTTL time.Duration

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string
}

// FromGlobalConfig converts the service configuration to a webhook.Config.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}
	maxBodySize, err := config.ParseSize(cfg.Webhook.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}

	out := Config{
		Listen:          cfg.Webhook.Listen,
		Path:            cfg.Webhook.Path,
		EmailPath:       cfg.Webhook.EmailPath,
		Secret:          cfg.Webhook.Secret,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		MaxBodySize:     maxBodySize,
		DevMode:         cfg.Service.DevMode,
		DedupeTTL:       cfg.Service.DedupeTTL,
	}
	if cfg.Metrics.Enabled {
		out.MetricsPath = cfg.Metrics.Path
	}
	return out, nil
}

// Response is the JSON body of every intake response.
type Response struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// HealthResponse is served on /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Channel       string `json:"channel"`
}

// Response statuses.
const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
	StatusReady     = "ready"
)

// Default values
const (
	DefaultMaxBodySize     = config.DefaultMaxBodySize
	DefaultSignatureHeader = "X-ElevenLabs-Signature"
)
