package twilio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageParams_WhatsAppAddresses(t *testing.T) {
	p := messageParams("+14155238886", "+5511999990000", "hi")

	require.NotNil(t, p.To)
	assert.Equal(t, "whatsapp:+5511999990000", *p.To)
	assert.Equal(t, "whatsapp:+14155238886", *p.From)
	assert.Equal(t, "hi", *p.Body)
}

func TestWhatsAppAddress_KeepsPrefix(t *testing.T) {
	assert.Equal(t, "whatsapp:+1", whatsappAddress("whatsapp:+1"))
}

func TestWhatsAppAddress_ShortAndBareNumbers(t *testing.T) {
	assert.Equal(t, "whatsapp:+5511999990000", whatsappAddress("+5511999990000"))
	assert.Equal(t, "whatsapp:wh", whatsappAddress("wh"))
	assert.Equal(t, "whatsapp:", whatsappAddress(""))
}
