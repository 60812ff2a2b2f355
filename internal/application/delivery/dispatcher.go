// Package delivery routes verification codes and draw notices to the
// configured email and WhatsApp transports.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-secret-friend/internal/domain"
	"github.com/go-secret-friend/internal/infrastructure/metrics"
	"github.com/go-secret-friend/internal/pkg/identifier"
)

const defaultTimeout = 10 * time.Second

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// PhoneSender delivers a text message to an E.164 number.
type PhoneSender interface {
	SendMessage(ctx context.Context, to, body string) error
}

type DispatcherDeps struct {
	Email         EmailSender
	EmailProvider string
	Phone         PhoneSender
	PhoneProvider string
	// CountryCode is prepended to normalized phone digits ("55").
	CountryCode string
	Timeout     time.Duration
}

// Dispatcher satisfies the code deliverer contract: a transport failure is
// reported in the outcome and never undoes the stored code.
type Dispatcher struct {
	email         EmailSender
	emailProvider string
	phone         PhoneSender
	phoneProvider string
	countryCode   string
	timeout       time.Duration
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		email:         deps.Email,
		emailProvider: deps.EmailProvider,
		phone:         deps.Phone,
		phoneProvider: deps.PhoneProvider,
		countryCode:   deps.CountryCode,
		timeout:       deps.Timeout,
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	return d
}

func (d *Dispatcher) Send(ctx context.Context, ident string, ch domain.Channel, code string) domain.DeliveryOutcome {
	var (
		provider string
		err      error
	)
	switch ch {
	case domain.ChannelEmail:
		provider = d.emailProvider
		err = d.sendEmail(ctx, ident, "Your secret friend access code", codeMessage(code))
	case domain.ChannelWhatsApp:
		provider = d.phoneProvider
		err = d.sendPhone(ctx, ident, codeMessage(code))
	default:
		err = fmt.Errorf("unsupported channel %q", ch)
	}
	metrics.DeliveriesTotal.WithLabelValues(string(ch), provider, metrics.Result("", err)).Inc()
	if err != nil {
		return domain.DeliveryOutcome{Provider: provider, Err: fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)}
	}
	slog.Info("verification code delivered", "channel", ch, "provider", provider)
	return domain.DeliveryOutcome{Delivered: true, Provider: provider}
}

// Notify sends a free-form WhatsApp message to a participant's normalized phone.
func (d *Dispatcher) Notify(ctx context.Context, phoneDigits, body string) error {
	err := d.sendPhone(ctx, phoneDigits, body)
	metrics.DeliveriesTotal.WithLabelValues(string(domain.ChannelWhatsApp), d.phoneProvider, metrics.Result("", err)).Inc()
	return err
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	if d.email == nil {
		return errors.New("no email transport configured")
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.email.SendEmail(ctx, to, subject, body)
}

func (d *Dispatcher) sendPhone(ctx context.Context, digits, body string) error {
	if d.phone == nil {
		return errors.New("no whatsapp transport configured")
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.phone.SendMessage(ctx, identifier.E164(digits, d.countryCode), body)
}

func codeMessage(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in a few minutes; do not share it.", code)
}
