package mail

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/pkg/config"
)

const (
	DriverLog      = "log"
	DriverSendGrid = "sendgrid"
)

// Message is a plain-text email addressed to a single recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
}

// Mailer delivers messages through some transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the mailer selected by cfg.Driver.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverLog:
		return NewLogMailer(cfg.From, logger), nil
	case DriverSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("sendgrid driver requires SENDGRID_API_KEY")
		}
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.FromName, cfg.From), nil
	default:
		return nil, errors.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" && strings.TrimSpace(msg.Text) == "" {
		return errors.New("mail has no content")
	}
	return nil
}
