package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/resend/resend-go/v2"
)

// ResendChannel sends email through the Resend API.
type ResendChannel struct {
	client *resend.Client
}

// NewResendChannel creates a channel using apiKey. A nil httpClient uses
// http.DefaultClient.
func NewResendChannel(apiKey string, httpClient *http.Client) *ResendChannel {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ResendChannel{client: resend.NewCustomClient(httpClient, apiKey)}
}

func (c *ResendChannel) Type() string { return "resend" }

func (c *ResendChannel) Send(ctx context.Context, msg Message) (string, error) {
	sent, err := c.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}
