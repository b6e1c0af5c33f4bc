package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"device-loan-backend/internal/logger"
)

const sendGridSendPath = "/v3/mail/send"

type SendGridSender struct {
	apiKey    string
	fromEmail string
	fromName  string
	host      string
}

func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// WithHost points the sender at a different API host, e.g. the EU region.
func (s *SendGridSender) WithHost(host string) *SendGridSender {
	s.host = host
	return s
}

func (s *SendGridSender) Channel() string {
	return "email"
}

func (s *SendGridSender) Send(ctx context.Context, e Email) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(e.ToName, e.To)
	message := mail.NewSingleEmail(from, e.Subject, to, e.PlainText, e.HTML)

	// The client keeps the request body on itself, so one per send.
	client := sendgrid.NewSendClient(s.apiKey)
	if s.host != "" {
		client.BaseURL = s.host + sendGridSendPath
	}

	logger.ExternalServiceCall("sendgrid", "send", "to", e.To, "subject", e.Subject)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		err = fmt.Errorf("failed to send email: %w", err)
		logger.ExternalServiceResult("sendgrid", "send", err, "to", e.To)
		return err
	}

	if response.StatusCode >= 400 {
		sendErr := &SendError{Status: response.StatusCode, Body: response.Body}
		logger.ExternalServiceResult("sendgrid", "send", sendErr, "to", e.To)
		return sendErr
	}

	logger.ExternalServiceResult("sendgrid", "send", nil, "to", e.To, "status", response.StatusCode)
	return nil
}
