package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carrotwars/carrotwars/internal/config"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// WebhookClient mirrors internal messages to an external chat webhook so
// households that live in a chat tool see transitions without opening the app.
type WebhookClient struct {
	webhookURL string
	enabled    bool
	log        *logger.Logger
}

// NewWebhookClient creates a new webhook client.
func NewWebhookClient(cfg *config.MessagingConfig, log *logger.Logger) *WebhookClient {
	return &WebhookClient{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.WebhookEnabled,
		log:        log,
	}
}

// webhookPayload is the posted message body.
type webhookPayload struct {
	Text string `json:"text"`
}

// Send posts a single line of text to the configured webhook.
func (c *WebhookClient) Send(text string) error {
	if !c.enabled {
		c.log.Debug().Msg("Webhook mirror is disabled, skipping message")
		return nil
	}

	payload, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
