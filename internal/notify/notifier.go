package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattjoyce/intake-gw/internal/intake"
	"github.com/mattjoyce/intake-gw/internal/metrics"
)

// Receipt describes a successful dispatch.
type Receipt struct {
	Channel    string
	ProviderID string
	Subject    string
}

// Options are the addressing settings shared by every message.
type Options struct {
	From          string
	To            []string
	SubjectPrefix string
}

// Notifier renders intake fields and sends them through one Channel.
type Notifier struct {
	channel  Channel
	renderer *Renderer
	opts     Options
	logger   *slog.Logger
}

func NewNotifier(ch Channel, r *Renderer, opts Options, logger *slog.Logger) *Notifier {
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = heading
	}
	return &Notifier{channel: ch, renderer: r, opts: opts, logger: logger}
}

// Channel returns the channel type, e.g. "resend".
func (n *Notifier) Channel() string { return n.channel.Type() }

// Subject builds "<prefix> – <name>", using "Unknown" when name is blank.
func (n *Notifier) Subject(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Unknown"
	}
	return n.opts.SubjectPrefix + " – " + name
}

// NotifyIntake renders the intake template for fields and dispatches it.
func (n *Notifier) NotifyIntake(ctx context.Context, fields intake.Fields) (Receipt, error) {
	htmlBody, text, err := n.renderer.RenderIntake(fields)
	if err != nil {
		return Receipt{}, err
	}
	name, _ := fields.Lookup(intake.FieldPatientName)
	return n.dispatch(ctx, n.message(n.Subject(name), htmlBody, text))
}

// NotifyBasic renders the basic template for in and dispatches it.
func (n *Notifier) NotifyBasic(ctx context.Context, in BasicIntake) (Receipt, error) {
	htmlBody, text, err := n.renderer.RenderBasic(in)
	if err != nil {
		return Receipt{}, err
	}
	return n.dispatch(ctx, n.message(n.Subject(in.PatientName), htmlBody, text))
}

func (n *Notifier) message(subject, htmlBody, text string) Message {
	return Message{
		From:    n.opts.From,
		To:      n.opts.To,
		Subject: subject,
		HTML:    htmlBody,
		Text:    text,
	}
}

func (n *Notifier) dispatch(ctx context.Context, msg Message) (Receipt, error) {
	channel := n.channel.Type()
	// Nothing is sent once the caller has gone away.
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	start := time.Now()
	id, err := n.channel.Send(ctx, msg)
	metrics.DispatchDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchErrors.WithLabelValues(channel).Inc()
		n.logger.Error("notification dispatch failed", "channel", channel, "error", err)
		return Receipt{}, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	n.logger.Info("notification sent", "channel", channel, "provider_id", id, "recipients", len(msg.To))
	return Receipt{Channel: channel, ProviderID: id, Subject: msg.Subject}, nil
}
