package sendgrid

import (
	"testing"

	"github.com/go-secret-friend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Sandbox(t *testing.T) {
	s := NewSender(config.DeliveryConfig{SendGridFromEmail: "noreply@example.com", SendGridFromName: "Amigo Secreto", SendGridSandbox: true})

	msg := s.build("ana@example.com", "Code", "123456")

	require.NotNil(t, msg.MailSettings)
	require.NotNil(t, msg.MailSettings.SandboxMode)
	assert.True(t, *msg.MailSettings.SandboxMode.Enable)
	assert.Equal(t, "noreply@example.com", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "ana@example.com", msg.Personalizations[0].To[0].Address)
	assert.Equal(t, "Code", msg.Subject)
}

func TestBuild_NoSandbox(t *testing.T) {
	s := NewSender(config.DeliveryConfig{SendGridFromEmail: "noreply@example.com"})

	assert.Nil(t, s.build("ana@example.com", "Code", "123456").MailSettings)
}
