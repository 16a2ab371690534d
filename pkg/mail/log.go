package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/pkg/logger"
)

// LogMailer writes messages to the structured log instead of sending them.
type LogMailer struct {
	from   string
	logger *zap.Logger
}

// NewLogMailer builds a mailer for local development.
func NewLogMailer(from string, l *zap.Logger) *LogMailer {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogMailer{from: from, logger: l}
}

// Send logs msg.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	logger.FromContext(ctx, m.logger).Info("mail captured",
		zap.String("from", m.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Text)),
	)
	return nil
}
