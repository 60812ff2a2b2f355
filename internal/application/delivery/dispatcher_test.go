package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-secret-friend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmail struct{ mock.Mock }

func (m *mockEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type mockPhone struct{ mock.Mock }

func (m *mockPhone) SendMessage(ctx context.Context, to, body string) error {
	return m.Called(ctx, to, body).Error(0)
}

func TestSend_EmailCarriesCode(t *testing.T) {
	em := &mockEmail{}
	em.On("SendEmail", mock.Anything, "ana@example.com", mock.Anything, mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "042137")
	})).Return(nil)
	d := NewDispatcher(DispatcherDeps{Email: em, EmailProvider: "smtp"})

	out := d.Send(context.Background(), "ana@example.com", domain.ChannelEmail, "042137")

	assert.True(t, out.Delivered)
	assert.Equal(t, "smtp", out.Provider)
	assert.NoError(t, out.Err)
}

func TestSend_WhatsAppUsesE164(t *testing.T) {
	ph := &mockPhone{}
	ph.On("SendMessage", mock.Anything, "+5511999990000", mock.Anything).Return(nil)
	d := NewDispatcher(DispatcherDeps{Phone: ph, PhoneProvider: "twilio", CountryCode: "55"})

	out := d.Send(context.Background(), "11999990000", domain.ChannelWhatsApp, "123456")

	assert.True(t, out.Delivered)
	ph.AssertExpectations(t)
}

func TestSend_TransportFailureWrapped(t *testing.T) {
	em := &mockEmail{}
	em.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("550 mailbox unavailable"))
	d := NewDispatcher(DispatcherDeps{Email: em, EmailProvider: "sendgrid"})

	out := d.Send(context.Background(), "ana@example.com", domain.ChannelEmail, "123456")

	assert.False(t, out.Delivered)
	require.Error(t, out.Err)
	assert.True(t, errors.Is(out.Err, domain.ErrDeliveryFailed))
}

func TestSend_MissingTransport(t *testing.T) {
	d := NewDispatcher(DispatcherDeps{})

	out := d.Send(context.Background(), "11999990000", domain.ChannelWhatsApp, "123456")

	assert.True(t, errors.Is(out.Err, domain.ErrDeliveryFailed))
}

func TestSend_AppliesTimeout(t *testing.T) {
	ph := &mockPhone{}
	ph.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	})
	d := NewDispatcher(DispatcherDeps{Phone: ph, CountryCode: "55", Timeout: time.Second})

	d.Send(context.Background(), "11999990000", domain.ChannelWhatsApp, "123456")

	ph.AssertExpectations(t)
}

func TestNotify_ForwardsBody(t *testing.T) {
	ph := &mockPhone{}
	ph.On("SendMessage", mock.Anything, "+551133334444", "hello").Return(nil)
	d := NewDispatcher(DispatcherDeps{Phone: ph, CountryCode: "+55"})

	require.NoError(t, d.Notify(context.Background(), "1133334444", "hello"))
}
