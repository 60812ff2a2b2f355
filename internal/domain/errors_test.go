package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("verify a@x.com: %w", ErrExpired)
	assert.Equal(t, "EXPIRED", Reason(err))
	assert.True(t, IsBusinessRule(err))
}

func TestReason_UnknownError(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	assert.Equal(t, "", Reason(err))
	assert.False(t, IsBusinessRule(err))
}

func TestReason_Nil(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
}

func TestCodeKey_String(t *testing.T) {
	k := CodeKey{Identifier: "a@x.com", Channel: ChannelEmail, Purpose: PurposeLogin}
	assert.Equal(t, "a@x.com#email#login", k.String())
}
