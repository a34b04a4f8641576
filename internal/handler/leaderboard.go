package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/service"
)

// LeaderboardHandler serves group standings.
type LeaderboardHandler struct {
	svc *service.LeaderboardService
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(svc *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{svc: svc}
}

// Top handles GET /groups/{groupID}/seasons/{seasonID}/leaderboard.
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	groupID, seasonID, err := boardParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.svc.Top(r.Context(), groupID, seasonID, limit, offset)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}

// Me handles GET /groups/{groupID}/seasons/{seasonID}/leaderboard/me.
func (h *LeaderboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	groupID, seasonID, err := boardParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	entry, err := h.svc.UserRank(r.Context(), groupID, seasonID, userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, entry)
}

// Around handles GET /groups/{groupID}/seasons/{seasonID}/leaderboard/around.
func (h *LeaderboardHandler) Around(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	groupID, seasonID, err := boardParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	k, _ := strconv.Atoi(r.URL.Query().Get("k"))

	entries, err := h.svc.Around(r.Context(), groupID, seasonID, userID, k)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}

// Rebuild handles POST /admin/groups/{groupID}/seasons/{seasonID}/rebuild.
func (h *LeaderboardHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	groupID, seasonID, err := boardParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	if err := h.svc.Rebuild(r.Context(), groupID, seasonID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "rebuilt"})
}

func boardParams(r *http.Request) (groupID, seasonID uuid.UUID, err error) {
	groupID, err = uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, domain.ErrValidation("invalid group id")
	}
	seasonID, err = uuid.Parse(chi.URLParam(r, "seasonID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, domain.ErrValidation("invalid season id")
	}
	return groupID, seasonID, nil
}
