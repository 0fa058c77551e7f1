// Package notify renders intake notifications and hands them to a delivery
// channel.
//
// A Channel is built once at startup from configuration and shared by every
// request. Sends are never retried here; a failed send is reported to the
// caller wrapped in ErrDispatch.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mattjoyce/intake-gw/internal/config"
)

// ErrDispatch wraps every failure to hand a message to its channel.
var ErrDispatch = errors.New("notification dispatch failed")

// Message is a rendered notification ready for delivery.
type Message struct {
	From    string   `json:"from,omitempty"`
	To      []string `json:"to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

//go:generate mockgen -destination=mocks/mock_channel.go -package=mocks github.com/mattjoyce/intake-gw/internal/notify Channel

// Channel delivers a Message and returns the provider's message id.
// Implementations must be safe for concurrent use.
type Channel interface {
	Send(ctx context.Context, msg Message) (string, error)
	Type() string
}

// NewChannel builds the channel selected by cfg.Channel.
func NewChannel(cfg config.NotifyConfig) (Channel, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Channel {
	case config.ChannelResend:
		return NewResendChannel(cfg.Resend.APIKey, httpClient), nil
	case config.ChannelDir:
		return NewDirChannel(cfg.Dir.Path)
	case config.ChannelSlack:
		return NewSlackChannel(cfg.Slack.WebhookURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown notify channel %q", cfg.Channel)
	}
}
