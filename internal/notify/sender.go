package notify

import (
	"context"
	"fmt"
)

// Email is one outbound message.
type Email struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// EmailSender delivers a single email. Implementations must honour ctx.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
	Channel() string
}

// SendError is a rejection reported by the email provider.
type SendError struct {
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("email provider returned status %d: %s", e.Status, e.Body)
}

// StatusCode lets the retry classifier treat 5xx and 429 as transient.
func (e *SendError) StatusCode() int {
	return e.Status
}
