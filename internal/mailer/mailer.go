// Package mailer delivers out-of-band messages (password-reset links,
// email-verification links) to users. Delivery is a collaborator: the
// application publishes a message and moves on; retries and rendering
// belong to the consumer side.
package mailer

import (
	"context"

	"github.com/artfolio/artfolio/internal/logger"
)

// Message is one out-of-band delivery.
type Message struct {
	Type          string `json:"type"` // "password_reset", "email_verification"
	Recipient     string `json:"recipient"`
	RecipientName string `json:"recipientName,omitempty"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	ActionURL     string `json:"actionUrl,omitempty"`
}

// Mailer sends a message out-of-band.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes deliveries to the log instead of sending them.
// Default in development, where reset links land in the console.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	logger.Info("mail delivery (log only)",
		"type", msg.Type,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
		"action_url", msg.ActionURL,
	)
	return nil
}
