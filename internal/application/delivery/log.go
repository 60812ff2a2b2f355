package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// ErrLogTransportDisabled is returned when the log transport is requested
// outside development.
var ErrLogTransportDisabled = errors.New("log transport is only available in development")

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// LogSender writes messages to the log instead of a real transport, with
// verification codes masked. It exists for local development only.
type LogSender struct{}

// NewLogSender refuses to build a log transport unless appEnv is "development".
func NewLogSender(appEnv string) (LogSender, error) {
	if appEnv != "development" {
		return LogSender{}, fmt.Errorf("APP_ENV=%s: %w", appEnv, ErrLogTransportDisabled)
	}
	return LogSender{}, nil
}

func (LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	slog.Info("email (log transport)", "to", to, "subject", subject, "body", redact(body))
	return nil
}

func (LogSender) SendMessage(_ context.Context, to, body string) error {
	slog.Info("whatsapp (log transport)", "to", to, "body", redact(body))
	return nil
}

func redact(body string) string {
	return codePattern.ReplaceAllString(body, "******")
}
