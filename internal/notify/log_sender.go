package notify

import (
	"context"

	"device-loan-backend/internal/logger"
)

// LogSender writes emails to the log instead of delivering them. Used in
// development and when no provider is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (LogSender) Channel() string {
	return "email"
}

func (LogSender) Send(ctx context.Context, e Email) error {
	logger.InfoContext(ctx, "Email (log sender)",
		"to", e.To,
		"subject", e.Subject,
		"body", e.PlainText)
	return nil
}
