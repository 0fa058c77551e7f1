package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SlackChannel posts the plain-text rendering to a Slack incoming webhook.
type SlackChannel struct {
	url    string
	client *http.Client
}

func NewSlackChannel(webhookURL string, httpClient *http.Client) *SlackChannel {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SlackChannel{url: webhookURL, client: httpClient}
}

func (c *SlackChannel) Type() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"text": "*" + msg.Subject + "*\n\n" + msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("slack: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	// Slack does not return a message id for incoming webhooks.
	return "", nil
}
