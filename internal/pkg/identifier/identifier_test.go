package identifier

import (
	"testing"

	"github.com/go-secret-friend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Email(t *testing.T) {
	cases := map[string]string{
		"a@x.com":              "a@x.com",
		"  Alice@Example.COM ": "alice@example.com",
		"o.r+tag@mail.co.uk":   "o.r+tag@mail.co.uk",
	}
	for in, want := range cases {
		got, err := Normalize(in, domain.ChannelEmail)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestNormalize_Email_Invalid(t *testing.T) {
	for _, in := range []string{"", "alice", "a@@x.com", "a@b@x.com", "@x.com", "a@", "a@localhost", "a@.com", "a@x.", "a b@x.com"} {
		_, err := Normalize(in, domain.ChannelEmail)
		assert.ErrorIs(t, err, domain.ErrInvalidIdentifier, in)
	}
}

func TestNormalize_WhatsApp(t *testing.T) {
	cases := map[string]string{
		"(11) 99999-9999": "11999999999",
		"11 9999-9999":    "1199999999",
		"11999999999":     "11999999999",
	}
	for in, want := range cases {
		got, err := Normalize(in, domain.ChannelWhatsApp)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestNormalize_WhatsApp_Invalid(t *testing.T) {
	for _, in := range []string{"", "999-9999", "+55 11 99999-9999", "abc"} {
		_, err := Normalize(in, domain.ChannelWhatsApp)
		assert.ErrorIs(t, err, domain.ErrInvalidIdentifier, in)
	}
}

func TestNormalize_UnknownChannel(t *testing.T) {
	_, err := Normalize("a@x.com", domain.Channel("pigeon"))
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
}

func TestE164(t *testing.T) {
	assert.Equal(t, "+5511999999999", E164("11999999999", "55"))
	assert.Equal(t, "+5511999999999", E164("11999999999", "+55"))
}
