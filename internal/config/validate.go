package config

import (
	"errors"
	"fmt"
	"net/mail"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Report yaml paths (notify.from) rather than Go field names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// mailbox accepts "user@host" and "Name <user@host>".
		_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
			_, err := mail.ParseAddress(fl.Field().String())
			return err == nil
		})
		structCheck = v
	})
	return structCheck
}

// Validate checks field formats with struct tags, then the cross-field rules
// tags cannot express.
func Validate(cfg *Config) error {
	if err := checkUnresolved(cfg); err != nil {
		return err
	}

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if _, err := ParseSize(cfg.Webhook.MaxBodySize); err != nil {
		return fmt.Errorf("webhook.max_body_size: %w", err)
	}
	if cfg.Webhook.EmailPath != "" && cfg.Webhook.EmailPath == cfg.Webhook.Path {
		return fmt.Errorf("webhook.email_path must differ from webhook.path")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		return fmt.Errorf("metrics.path is required when metrics are enabled")
	}

	switch cfg.Notify.Channel {
	case ChannelResend:
		if cfg.Notify.Resend.APIKey == "" {
			return fmt.Errorf("notify.resend.api_key is required for the resend channel")
		}
		if err := requireAddresses(cfg.Notify); err != nil {
			return err
		}
	case ChannelDir:
		if cfg.Notify.Dir.Path == "" {
			return fmt.Errorf("notify.dir.path is required for the dir channel")
		}
		if err := requireAddresses(cfg.Notify); err != nil {
			return err
		}
	case ChannelSlack:
		if cfg.Notify.Slack.WebhookURL == "" {
			return fmt.Errorf("notify.slack.webhook_url is required for the slack channel")
		}
	}

	return nil
}

func requireAddresses(n NotifyConfig) error {
	if n.From == "" {
		return fmt.Errorf("notify.from is required for the %s channel", n.Channel)
	}
	if len(n.To) == 0 {
		return fmt.Errorf("notify.to must list at least one recipient for the %s channel", n.Channel)
	}
	return nil
}

// describeFieldError turns "Config.notify.from" + "mailbox" into a readable line.
func describeFieldError(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %q)", path, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "mailbox":
		return fmt.Sprintf("%s: %q is not a valid email address", path, fe.Value())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", path, fe.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port (got %q)", path, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}

// checkUnresolved rejects secrets and addresses still holding ${VAR}.
func checkUnresolved(cfg *Config) error {
	fields := map[string]string{
		"webhook.secret":           cfg.Webhook.Secret,
		"notify.from":              cfg.Notify.From,
		"notify.resend.api_key":    cfg.Notify.Resend.APIKey,
		"notify.slack.webhook_url": cfg.Notify.Slack.WebhookURL,
		"state.path":               cfg.State.Path,
	}
	for i, to := range cfg.Notify.To {
		fields[fmt.Sprintf("notify.to[%d]", i)] = to
	}
	for name, value := range fields {
		if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", name, matches[1])
		}
	}
	return nil
}

// DefaultMaxBodySize is used when webhook.max_body_size is empty.
const DefaultMaxBodySize int64 = 1048576 // 1 MB

// ParseSize parses size strings like "1MB", "512KB" or "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func ParseSize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		factor int64
	}{
		{"KB", 1024},
		{"MB", 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
	} {
		if strings.HasSuffix(upper, unit.suffix) {
			multiplier = unit.factor
			upper = strings.TrimSuffix(upper, unit.suffix)
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
