package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-secret-friend/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// IssueEnvelope answers a code request.
type IssueEnvelope struct {
	Issued            bool   `json:"issued"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	DeliveryError     string `json:"delivery_error,omitempty"`
	Reason            string `json:"reason,omitempty"`
	Error             string `json:"error,omitempty"`
}

// VerifyEnvelope answers a code submission. Business failures keep a 200 status
// and carry the reason code.
type VerifyEnvelope struct {
	Success      bool            `json:"success"`
	Reason       string          `json:"reason,omitempty"`
	Token        string          `json:"token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
}

// AuthEnvelope wraps refresh responses.
type AuthEnvelope struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
}

// PairsEnvelope wraps draw results.
type PairsEnvelope struct {
	EventID  string            `json:"event_id"`
	Pairs    []domain.DrawPair `json:"pairs"`
	DrawDate *time.Time        `json:"draw_date,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidIdentifier),
		errors.Is(err, domain.ErrInsufficientParticipants),
		errors.Is(err, domain.ErrNotAllConfirmed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrEventLocked),
		errors.Is(err, domain.ErrDrawAlreadyPerformed),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// httpError writes err with its mapped status. Storage and other unexpected
// failures are logged and answered without internal detail.
func httpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		slog.Error("request failed", "error", err)
		writeError(w, status, "service temporarily unavailable")
		return
	}
	writeJSON(w, status, MessageEnvelope{Error: err.Error(), Reason: domain.Reason(err)})
}

// retryAfterSeconds rounds a cooldown up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
}
