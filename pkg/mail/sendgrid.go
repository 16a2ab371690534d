package mail

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridMailer sends messages through the SendGrid v3 API.
type SendGridMailer struct {
	key  string
	host string
	from *sgmail.Email
}

// NewSendGridMailer builds a SendGrid-backed mailer.
func NewSendGridMailer(key, fromName, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		key:  key,
		host: sendGridHost,
		from: sgmail.NewEmail(fromName, fromEmail),
	}
}

// Send delivers msg synchronously.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "sendgrid send aborted")
	}

	req := sendgrid.GetRequest(m.key, sendGridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (m *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return v3
}
