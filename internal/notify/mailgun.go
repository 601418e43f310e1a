package notify

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// MailgunNotifier sends operator notifications through Mailgun.
type MailgunNotifier struct {
	mg     *mailgun.MailgunImpl
	sender string
	logger *zap.Logger
}

func NewMailgunNotifier(domain, apiKey, sender string, logger *zap.Logger) *MailgunNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailgunNotifier{
		mg:     mailgun.NewMailgun(domain, apiKey),
		sender: sender,
		logger: logger.Named("notify"),
	}
}

func (n *MailgunNotifier) Send(ctx context.Context, msg Message) error {
	m := n.mg.NewMessage(n.sender, msg.Subject, "", msg.Recipient)
	m.SetHtml(msg.Body)

	_, id, err := n.mg.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	n.logger.Debug("notification sent",
		zap.String("recipient", msg.Recipient),
		zap.String("message_id", id),
	)
	return nil
}
