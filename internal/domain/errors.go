package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")
)

// Verification code failures.
var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrRateLimited       = errors.New("rate limited")
	ErrExpired           = errors.New("code expired")
	ErrAlreadyConsumed   = errors.New("code already consumed")
	ErrAttemptsExceeded  = errors.New("too many attempts")
	ErrInvalidCode       = errors.New("invalid code")
	ErrDeliveryFailed    = errors.New("delivery failed")
)

// Event and draw failures.
var (
	ErrInsufficientParticipants = errors.New("at least two participants are required")
	ErrNotAllConfirmed          = errors.New("not all participants are confirmed")
	ErrDrawAlreadyPerformed     = errors.New("draw already performed")
	ErrEventLocked              = errors.New("event is locked after the draw")
	ErrConcurrentModification   = errors.New("concurrent modification")
)

// reasons maps business-rule sentinels to the stable codes exposed to clients.
var reasons = []struct {
	err  error
	code string
}{
	{ErrInvalidIdentifier, "INVALID_IDENTIFIER"},
	{ErrRateLimited, "RATE_LIMITED"},
	{ErrExpired, "EXPIRED"},
	{ErrAlreadyConsumed, "ALREADY_CONSUMED"},
	{ErrAttemptsExceeded, "ATTEMPTS_EXCEEDED"},
	{ErrInvalidCode, "INVALID_CODE"},
	{ErrDeliveryFailed, "DELIVERY_FAILED"},
	{ErrInsufficientParticipants, "INSUFFICIENT_PARTICIPANTS"},
	{ErrNotAllConfirmed, "NOT_ALL_CONFIRMED"},
	{ErrDrawAlreadyPerformed, "DRAW_ALREADY_PERFORMED"},
	{ErrEventLocked, "EVENT_LOCKED"},
	{ErrConcurrentModification, "CONCURRENT_MODIFICATION"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrConflict, "CONFLICT"},
	{ErrValidation, "VALIDATION"},
	{ErrBadRequest, "BAD_REQUEST"},
}

// Reason returns the machine-readable code for a business-rule error,
// or an empty string when err is nil or not a known domain failure.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ""
}

// IsBusinessRule reports whether err is an expected business outcome rather
// than a transport or storage failure.
func IsBusinessRule(err error) bool {
	return Reason(err) != ""
}
