package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.OTP.Cooldown)
	assert.Equal(t, 100, cfg.Draw.MaxAttempts)
	assert.Equal(t, "verification_codes", cfg.DynamoTables.VerificationCodes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OTP_TTL", "2m")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("DRAW_NOTIFY_PARTICIPANTS", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()
	assert.Equal(t, 2*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.True(t, cfg.Draw.NotifyParticipants)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("OTP_COOLDOWN", "soon")
	t.Setenv("DRAW_MAX_ATTEMPTS", "many")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.OTP.Cooldown)
	assert.Equal(t, 100, cfg.Draw.MaxAttempts)
	assert.True(t, cfg.MetricsEnabled)
}
