package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-secret-friend/internal/application/event"
	"github.com/go-secret-friend/internal/domain"
)

// PublicEvent is what participants see; the organizer's email stays private.
type PublicEvent struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	MinValue      float64   `json:"min_value"`
	MaxValue      float64   `json:"max_value"`
	EventDate     time.Time `json:"event_date"`
	DrawPerformed bool      `json:"draw_performed"`
}

// PublicParticipant omits the verified WhatsApp number.
type PublicParticipant struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Confirmed      bool    `json:"confirmed"`
	GiftSuggestion *string `json:"gift_suggestion,omitempty"`
}

func toPublicEvent(e *domain.Event) PublicEvent {
	return PublicEvent{
		ID:            e.EventID,
		Title:         e.Title,
		Description:   e.Description,
		MinValue:      e.MinValue,
		MaxValue:      e.MaxValue,
		EventDate:     e.Date,
		DrawPerformed: e.DrawPerformed,
	}
}

func toPublicParticipant(p domain.Participant) PublicParticipant {
	return PublicParticipant{ID: p.ParticipantID, Name: p.Name, Confirmed: p.Confirmed, GiftSuggestion: p.GiftSuggestion}
}

// PublicHandler serves the participant-facing endpoints that need no login.
type PublicHandler struct {
	svc event.Service
}

func NewPublicHandler(svc event.Service) *PublicHandler { return &PublicHandler{svc: svc} }

func (h *PublicHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicEvent(e))
}

func (h *PublicHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	confirmed, ok := confirmedFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "confirmed must be true or false")
		return
	}
	participants, err := h.svc.ListParticipants(r.Context(), chi.URLParam(r, "id"), confirmed)
	if err != nil {
		httpError(w, err)
		return
	}
	out := make([]PublicParticipant, 0, len(participants))
	for _, p := range participants {
		out = append(out, toPublicParticipant(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PublicHandler) SendWhatsAppCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WhatsAppNumber string `json:"whatsapp_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.RequestPhoneCode(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"), req.WhatsAppNumber)
	if err != nil {
		httpError(w, err)
		return
	}
	writeIssue(w, res)
}

func (h *PublicHandler) VerifyWhatsAppCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WhatsAppNumber string `json:"whatsapp_number"`
		Code           string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.VerifyPhoneCode(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"), req.WhatsAppNumber, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeVerify(w, res)
}

func (h *PublicHandler) UpdateGiftSuggestion(w http.ResponseWriter, r *http.Request) {
	var req domain.GiftSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.UpdateGiftSuggestion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicParticipant(*p))
}
