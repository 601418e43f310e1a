package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is a rendered operator notification.
type Message struct {
	Subject   string
	Recipient string
	Body      string
}

// Notifier delivers operator notifications. Failures are the caller's to
// log and swallow; a failed send must never roll back ledger state.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log instead of sending them.
// Used when no mail provider is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("notification (log only)",
		zap.String("subject", msg.Subject),
		zap.String("recipient", msg.Recipient),
	)
	return nil
}
