package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/leave-engine/internal/config"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridTransport struct {
	cfg    config.SendGridConfig
	client sendGridClient
}

func NewSendGridTransport(cfg config.SendGridConfig) *SendGridTransport {
	return &SendGridTransport{cfg: cfg, client: sendgrid.NewSendClient(cfg.APIKey)}
}

func (s *SendGridTransport) Send(ctx context.Context, msg Message) error {
	if s.cfg.APIKey == "" {
		return ErrNotConfigured
	}

	from := mail.NewEmail(s.cfg.FromName, s.cfg.From)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, "", msg.HTML)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}

	slog.InfoContext(ctx, "Email sent successfully", "to", msg.To, "subject", msg.Subject, "provider", "sendgrid")
	return nil
}
