package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/service"
)

// MatchHandler handles fixture endpoints. Reads are user-realm; writes are
// admin-realm.
type MatchHandler struct {
	svc *service.MatchService
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(svc *service.MatchService) *MatchHandler {
	return &MatchHandler{svc: svc}
}

// Create handles POST /admin/matches.
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateMatchInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	m, err := h.svc.Create(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, m)
}

// Get handles GET /matches/{id}.
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	m, err := h.svc.Get(r.Context(), matchID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// Reschedule handles PUT /admin/matches/{id}/schedule.
func (h *MatchHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input service.RescheduleMatchInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	m, err := h.svc.Reschedule(r.Context(), matchID, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

type transitionRequest struct {
	Status domain.MatchStatus `json:"status"`
}

// Transition handles POST /admin/matches/{id}/status.
func (h *MatchHandler) Transition(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req transitionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	m, err := h.svc.Transition(r.Context(), matchID, req.Status)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

func matchIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid match id")
	}
	return id, nil
}
