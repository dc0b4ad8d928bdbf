package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxRetries = 3

var ErrNotConfigured = errors.New("email transport is not configured")

// Message is a rendered HTML email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Transport delivers a rendered message. A nil error means the provider
// accepted it.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Renderer executes the embedded HTML templates.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.Format("Monday, 2 January 2006") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

func (r *Renderer) Render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := r.templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPTransport sends through an SMTP relay with exponential backoff.
type SMTPTransport struct {
	cfg     config.SMTPConfig
	send    sendFunc
	backoff time.Duration
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, send: smtp.SendMail, backoff: time.Second}
}

func (s *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" {
		slog.WarnContext(ctx, "SMTP not configured, skipping email send", "to", msg.To, "subject", msg.Subject)
		return ErrNotConfigured
	}

	from := s.cfg.From

	headers := fmt.Sprintf("From: %s <%s>\r\n", s.cfg.FromName, from)
	headers += fmt.Sprintf("To: %s\r\n", msg.To)
	headers += fmt.Sprintf("Subject: %s\r\n", msg.Subject)
	headers += "MIME-Version: 1.0\r\n"
	headers += "Content-Type: text/html; charset=\"UTF-8\"\r\n"
	headers += "\r\n"

	message := []byte(headers + msg.HTML)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := s.send(addr, auth, from, []string{msg.To}, message)
		if err == nil {
			slog.InfoContext(ctx, "Email sent successfully", "to", msg.To, "subject", msg.Subject, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.ErrorContext(ctx, "Failed to send email",
			"to", msg.To,
			"subject", msg.Subject,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		// exponential backoff: 1s, 2s, 4s
		if attempt < maxRetries {
			select {
			case <-time.After(s.backoff * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}

// LogTransport only logs messages. Used in development.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "Email (log transport)", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	return nil
}
