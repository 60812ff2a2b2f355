package twilio

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-secret-friend/internal/config"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const whatsappPrefix = "whatsapp:"

// Sender delivers WhatsApp messages through the Twilio Messaging API.
type Sender struct {
	client *twilio.RestClient
	from   string
}

func NewSender(cfg config.DeliveryConfig) *Sender {
	return &Sender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		}),
		from: cfg.TwilioWhatsAppFrom,
	}
}

// SendMessage sends body to an E.164 number. The Twilio client does not take
// a context, so a done ctx is only honoured before the request starts.
func (s *Sender) SendMessage(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := s.client.Api.CreateMessage(messageParams(s.from, to, body))
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp.ErrorCode != nil {
		return fmt.Errorf("twilio send: error code %d", *resp.ErrorCode)
	}
	return nil
}

func messageParams(from, to, body string) *twilioApi.CreateMessageParams {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(whatsappAddress(from))
	params.SetBody(body)
	return params
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}
