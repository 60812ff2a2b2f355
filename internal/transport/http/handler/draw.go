package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-secret-friend/internal/application/draw"
	"github.com/go-secret-friend/internal/application/event"
	"github.com/go-secret-friend/internal/domain"
	"github.com/go-secret-friend/internal/transport/http/middleware"
)

// DrawHandler runs an event's draw and reads its results back.
type DrawHandler struct {
	draws  draw.Service
	events event.Service
}

func NewDrawHandler(draws draw.Service, events event.Service) *DrawHandler {
	return &DrawHandler{draws: draws, events: events}
}

func (h *DrawHandler) Perform(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.draws.PerformDraw(r.Context(), claims.Identity, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PairsEnvelope{EventID: res.EventID, Pairs: res.Pairs, DrawDate: &res.DrawDate})
}

func (h *DrawHandler) Results(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	eventID := chi.URLParam(r, "id")
	pairs, err := h.events.Results(r.Context(), claims.Identity, eventID)
	if err != nil {
		httpError(w, err)
		return
	}
	if pairs == nil {
		pairs = []domain.DrawPair{}
	}
	writeJSON(w, http.StatusOK, PairsEnvelope{EventID: eventID, Pairs: pairs})
}
