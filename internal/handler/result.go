package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/service"
)

// ResultHandler handles result recording and the confirmation state machine.
// All routes are admin-realm; disputes additionally come in from the user
// realm.
type ResultHandler struct {
	svc *service.ResultService
}

// NewResultHandler creates a ResultHandler.
func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{svc: svc}
}

// Record handles POST /admin/results.
func (h *ResultHandler) Record(w http.ResponseWriter, r *http.Request) {
	adminID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input service.RecordResultInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.svc.Record(r.Context(), adminID, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// Get handles GET /admin/results/{id}.
func (h *ResultHandler) Get(w http.ResponseWriter, r *http.Request) {
	resultID, err := resultIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.svc.Get(r.Context(), resultID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// Confirm handles POST /admin/results/{id}/confirm.
func (h *ResultHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	resultID, err := resultIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.svc.Confirm(r.Context(), resultID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// Dispute handles POST /results/{id}/dispute (user realm).
func (h *ResultHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	resultID, err := resultIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input service.DisputeResultInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	dispute, err := h.svc.Dispute(r.Context(), userID, resultID, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, dispute)
}

// ResolveDispute handles POST /admin/results/{id}/resolve.
func (h *ResultHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	resultID, err := resultIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input service.ResolveDisputeInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.svc.ResolveDispute(r.Context(), resultID, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

type amendResultRequest struct {
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

// Amend handles POST /admin/results/{id}/amend.
func (h *ResultHandler) Amend(w http.ResponseWriter, r *http.Request) {
	resultID, err := resultIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req amendResultRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.svc.Amend(r.Context(), resultID, req.HomeScore, req.AwayScore)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// Void handles POST /admin/results/{id}/void.
func (h *ResultHandler) Void(w http.ResponseWriter, r *http.Request) {
	resultID, err := resultIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.svc.Void(r.Context(), resultID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// ListDisputes handles GET /admin/results/{id}/disputes.
func (h *ResultHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	resultID, err := resultIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	disputes, err := h.svc.ListDisputes(r.Context(), resultID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, disputes)
}

func resultIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid result id")
	}
	return id, nil
}
