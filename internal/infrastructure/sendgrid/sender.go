package sendgrid

import (
	"context"
	"fmt"

	"github.com/go-secret-friend/internal/config"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers email through the SendGrid v3 API.
type Sender struct {
	client  *sendgrid.Client
	from    *mail.Email
	sandbox bool
}

func NewSender(cfg config.DeliveryConfig) *Sender {
	return &Sender{
		client:  sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:    mail.NewEmail(cfg.SendGridFromName, cfg.SendGridFromEmail),
		sandbox: cfg.SendGridSandbox,
	}
}

func (s *Sender) SendEmail(ctx context.Context, to, subject, body string) error {
	msg := s.build(to, subject, body)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Sender) build(to, subject, body string) *mail.SGMailV3 {
	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), body, "")
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	return msg
}
