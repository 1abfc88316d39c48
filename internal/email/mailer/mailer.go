package mailer

import (
	"context"

	"github.com/google/uuid"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
)

// Message is one rendered email ready for transport.
type Message struct {
	Sender    string
	Recipient string
	Subject   string
	Body      string
}

// Mailer is the transport boundary. Implementations must be safe for
// concurrent use; the fire path sends per-recipient.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogMailer is the default transport for environments without a provider.
// It assigns a message id and logs the send instead of delivering.
type LogMailer struct {
	logg *logger.Logger
}

func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) (string, error) {
	messageID := uuid.NewString()
	if m.logg != nil {
		fields := map[string]any{
			"recipient":  msg.Recipient,
			"subject":    msg.Subject,
			"message_id": messageID,
		}
		m.logg.Info(m.logg.WithFields(ctx, fields), "email dispatched")
	}
	return messageID, nil
}

var _ Mailer = (*LogMailer)(nil)
