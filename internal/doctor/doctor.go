// Package doctor reviews a loaded intake-gw configuration for deployment
// problems that schema validation does not catch.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/mattjoyce/intake-gw/internal/config"
	"github.com/mattjoyce/intake-gw/internal/intake"
)

// minSecretLength is the shortest webhook secret accepted without a warning.
const minSecretLength = 16

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor reviews a configuration that has already passed config.Validate.
type Doctor struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateRoutes(r)
	d.validatePaths(r)
	d.warnSignature(r)
	d.warnLedger(r)
	d.warnNotify(r)
	d.warnQuestions(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateRoutes checks that no two routes share a path.
func (d *Doctor) validateRoutes(r *Result) {
	seen := map[string]string{"/healthz": "healthz"}
	routes := []struct{ field, path string }{
		{"webhook.path", d.cfg.Webhook.Path},
		{"webhook.email_path", d.cfg.Webhook.EmailPath},
	}
	if d.cfg.Metrics.Enabled {
		routes = append(routes, struct{ field, path string }{"metrics.path", d.cfg.Metrics.Path})
	}
	for _, rt := range routes {
		if rt.path == "" {
			continue
		}
		if other, ok := seen[rt.path]; ok {
			d.addError(r, "routes", rt.field, fmt.Sprintf("path %q is already used by %s", rt.path, other))
			continue
		}
		seen[rt.path] = rt.field
	}
}

// validatePaths checks that on-disk locations are usable.
func (d *Doctor) validatePaths(r *Result) {
	if p := d.cfg.State.Path; p != "" && p != ":memory:" {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			d.addError(r, "state", "state.path", fmt.Sprintf("%s is a directory, expected a database file", p))
		}
	}
	if d.cfg.Notify.Channel == config.ChannelDir {
		if info, err := os.Stat(d.cfg.Notify.Dir.Path); err == nil && !info.IsDir() {
			d.addError(r, "notify", "notify.dir.path", fmt.Sprintf("%s exists and is not a directory", d.cfg.Notify.Dir.Path))
		}
	}
}

// warnSignature flags deployments that accept unsigned payloads.
func (d *Doctor) warnSignature(r *Result) {
	secret := d.cfg.Webhook.Secret
	switch {
	case d.cfg.Service.DevMode:
		d.addWarning(r, "security", "service.dev_mode", "dev mode skips signature verification")
	case secret == "":
		msg := "no secret configured, signatures are not verified"
		if !isLoopback(d.cfg.Webhook.Listen) {
			msg += " and the listener is not loopback-only"
		}
		d.addWarning(r, "security", "webhook.secret", msg)
	case len(secret) < minSecretLength:
		d.addWarning(r, "security", "webhook.secret",
			fmt.Sprintf("secret is shorter than %d characters", minSecretLength))
	}
}

func (d *Doctor) warnLedger(r *Result) {
	if d.cfg.State.Path == "" && d.cfg.Service.DedupeTTL > 0 {
		d.addWarning(r, "state", "service.dedupe_ttl", "dedupe_ttl has no effect without state.path")
	}
	if d.cfg.State.Path == ":memory:" {
		d.addWarning(r, "state", "state.path", "in-memory ledger is lost on restart")
	}
}

func (d *Doctor) warnNotify(r *Result) {
	n := d.cfg.Notify
	switch n.Channel {
	case config.ChannelDir:
		d.addWarning(r, "notify", "notify.channel", "dir channel writes to local disk only; use it for development")
	case config.ChannelResend:
		if strings.HasSuffix(strings.ToLower(strings.TrimRight(n.From, ">")), "@resend.dev") {
			d.addWarning(r, "notify", "notify.from", "resend.dev sender only delivers to the account owner")
		}
	}
	if n.Timeout == 0 {
		d.addWarning(r, "notify", "notify.timeout", "no dispatch timeout; a stalled provider holds the request open")
	}
}

// warnQuestions reports question entries that the schema will ignore.
func (d *Doctor) warnQuestions(r *Result) {
	core := make(map[string]bool, len(intake.CoreFields))
	for _, f := range intake.CoreFields {
		core[f.Key] = true
	}
	seen := make(map[string]bool)
	for i, q := range d.cfg.Intake.Questions {
		field := fmt.Sprintf("intake.questions[%d]", i)
		switch {
		case q.Key == "":
			d.addWarning(r, "intake", field, "empty key is ignored")
		case core[q.Key]:
			d.addWarning(r, "intake", field, fmt.Sprintf("%q is a core field and is always extracted", q.Key))
		case seen[q.Key]:
			d.addWarning(r, "intake", field, fmt.Sprintf("duplicate key %q is ignored", q.Key))
		}
		seen[q.Key] = true
	}
}

func isLoopback(listen string) bool {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a readable summary of r.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
