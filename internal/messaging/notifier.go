// Package messaging provides the internal user-to-user messaging integration.
// Lifecycle services call Notify on every successful transition; delivery is
// fire-and-forget and never rolls a transition back.
package messaging

import (
	"context"

	"github.com/carrotwars/carrotwars/internal/metrics"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// MessageStore is the persistence surface the notifier needs.
type MessageStore interface {
	Create(message *models.Message) error
}

// Notifier persists internal messages and optionally mirrors them to a
// webhook.
type Notifier struct {
	store   MessageStore
	webhook *WebhookClient
	log     *logger.Logger
}

// NewNotifier creates a new notifier. The webhook client may be nil.
func NewNotifier(store MessageStore, webhook *WebhookClient, log *logger.Logger) *Notifier {
	return &Notifier{
		store:   store,
		webhook: webhook,
		log:     log,
	}
}

// Notify stores a message from sender to recipient. Errors are logged and
// swallowed: a failed notification must not affect the transition that
// produced it.
func (n *Notifier) Notify(ctx context.Context, senderID, recipientID uint, subject, body string) {
	message := &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Subject:     subject,
		Body:        body,
	}

	if err := n.store.Create(message); err != nil {
		n.log.Error().
			Err(err).
			Uint("sender_id", senderID).
			Uint("recipient_id", recipientID).
			Str("subject", subject).
			Msg("Failed to store notification message")
		metrics.MessagesSentTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.MessagesSentTotal.WithLabelValues("success").Inc()

	if n.webhook != nil {
		if err := n.webhook.Send(subject); err != nil {
			n.log.Warn().Err(err).Msg("Failed to mirror notification to webhook")
		}
	}

	n.log.Debug().
		Uint("sender_id", senderID).
		Uint("recipient_id", recipientID).
		Str("subject", subject).
		Msg("Notification sent")
}
