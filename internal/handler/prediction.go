package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/auth"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/repository"
	"github.com/pitchside/contest/internal/service"
)

// PredictionHandler handles the prediction lifecycle endpoints.
type PredictionHandler struct {
	svc *service.PredictionService
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(svc *service.PredictionService) *PredictionHandler {
	return &PredictionHandler{svc: svc}
}

type submitPredictionRequest struct {
	GroupID   uuid.UUID      `json:"group_id"`
	MatchID   uuid.UUID      `json:"match_id"`
	Winner    *domain.Winner `json:"winner,omitempty"`
	HomeScore *int           `json:"home_score,omitempty"`
	AwayScore *int           `json:"away_score,omitempty"`
	Notes     *string        `json:"notes,omitempty"`
}

// Submit handles POST /predictions.
func (h *PredictionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req submitPredictionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	p, err := h.svc.Submit(r.Context(), userID, service.SubmitPredictionInput{
		GroupID: req.GroupID,
		MatchID: req.MatchID,
		Payload: domain.PredictionPayload{
			Winner:    req.Winner,
			HomeScore: req.HomeScore,
			AwayScore: req.AwayScore,
			Notes:     req.Notes,
		},
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, p)
}

type updatePredictionRequest struct {
	Winner    *domain.Winner `json:"winner,omitempty"`
	HomeScore *int           `json:"home_score,omitempty"`
	AwayScore *int           `json:"away_score,omitempty"`
	Notes     *string        `json:"notes,omitempty"`
}

// Update handles PUT /predictions/{id}.
func (h *PredictionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	predictionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid prediction id"))
		return
	}

	var req updatePredictionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), userID, predictionID, service.UpdatePredictionInput{
		Payload: domain.PredictionPayload{
			Winner:    req.Winner,
			HomeScore: req.HomeScore,
			AwayScore: req.AwayScore,
			Notes:     req.Notes,
		},
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// Cancel handles DELETE /predictions/{id}.
func (h *PredictionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	predictionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid prediction id"))
		return
	}

	p, err := h.svc.Cancel(r.Context(), userID, predictionID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// Get handles GET /predictions/{id}.
func (h *PredictionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	predictionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid prediction id"))
		return
	}

	p, err := h.svc.Get(r.Context(), userID, predictionID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

// ListMine handles GET /predictions.
func (h *PredictionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var filters repository.PredictionFilters
	q := r.URL.Query()
	if raw := q.Get("group_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(w, domain.ErrValidation("invalid group_id filter"))
			return
		}
		filters.GroupID = &id
	}
	if raw := q.Get("match_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(w, domain.ErrValidation("invalid match_id filter"))
			return
		}
		filters.MatchID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := domain.PredictionStatus(raw)
		if !domain.ValidPredictionStatuses[status] {
			RespondError(w, domain.ErrValidation("invalid status filter"))
			return
		}
		filters.Status = &status
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filters.Limit = n
		}
	}

	preds, err := h.svc.ListForUser(r.Context(), userID, filters)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, preds)
}

// userIDFromContext resolves the authenticated subject.
func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	id, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("no authenticated subject")
	}
	return id, nil
}
