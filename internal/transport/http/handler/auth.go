package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-secret-friend/internal/application/otp"
	"github.com/go-secret-friend/internal/domain"
)

// AuthHandler handles organizer login by emailed code.
type AuthHandler struct {
	codes otp.Service
}

func NewAuthHandler(codes otp.Service) *AuthHandler { return &AuthHandler{codes: codes} }

func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.codes.Issue(r.Context(), otp.IssueRequest{
		Identifier: req.Email,
		Channel:    domain.ChannelEmail,
		Purpose:    domain.PurposeLogin,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeIssue(w, res)
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.codes.Verify(r.Context(), otp.VerifyRequest{
		Identifier: req.Email,
		Channel:    domain.ChannelEmail,
		Purpose:    domain.PurposeLogin,
		Code:       req.Code,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeVerify(w, res)
}

func writeIssue(w http.ResponseWriter, res otp.IssueResult) {
	switch {
	case res.Reason != nil:
		env := IssueEnvelope{Reason: domain.Reason(res.Reason), Error: res.Reason.Error()}
		if errors.Is(res.Reason, domain.ErrRateLimited) {
			setRetryAfter(w, res.RetryAfter)
			env.RetryAfterSeconds = retryAfterSeconds(res.RetryAfter)
		}
		writeJSON(w, statusFor(res.Reason), env)
	case res.DeliveryErr != nil:
		writeJSON(w, http.StatusBadGateway, IssueEnvelope{
			Issued:        true,
			DeliveryError: res.DeliveryErr.Error(),
			Reason:        domain.Reason(domain.ErrDeliveryFailed),
		})
	default:
		writeJSON(w, http.StatusOK, IssueEnvelope{Issued: true})
	}
}

func writeVerify(w http.ResponseWriter, res otp.VerifyResult) {
	if !res.Success {
		writeJSON(w, http.StatusOK, VerifyEnvelope{Reason: domain.Reason(res.Reason)})
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Success:      true,
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		Session:      res.Session,
	})
}
