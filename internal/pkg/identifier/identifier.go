package identifier

import (
	"fmt"
	"strings"

	"github.com/go-secret-friend/internal/domain"
)

// Normalize canonicalizes raw user input into the comparable key used for
// code slots. It is pure: same input, same output, no side effects.
func Normalize(raw string, ch domain.Channel) (string, error) {
	switch ch {
	case domain.ChannelEmail:
		return normalizeEmail(raw)
	case domain.ChannelWhatsApp:
		return normalizePhone(raw)
	default:
		return "", fmt.Errorf("unsupported channel %q: %w", ch, domain.ErrInvalidIdentifier)
	}
}

func normalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if strings.Count(e, "@") != 1 || strings.ContainsAny(e, " \t\r\n") {
		return "", fmt.Errorf("malformed email: %w", domain.ErrInvalidIdentifier)
	}
	local, host, _ := strings.Cut(e, "@")
	if local == "" || host == "" {
		return "", fmt.Errorf("malformed email: %w", domain.ErrInvalidIdentifier)
	}
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return "", fmt.Errorf("email domain must contain a dot: %w", domain.ErrInvalidIdentifier)
	}
	return e, nil
}

// normalizePhone keeps digits only; area code + number is 10 or 11 digits.
func normalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 10 && len(digits) != 11 {
		return "", fmt.Errorf("phone must have 10 or 11 digits: %w", domain.ErrInvalidIdentifier)
	}
	return digits, nil
}

// E164 prefixes a normalized phone with the carrier country code ("+5511999999999").
func E164(digits, countryCode string) string {
	return "+" + strings.TrimPrefix(countryCode, "+") + digits
}
