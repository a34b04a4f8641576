package handler

import (
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitchside/contest/internal/domain"
	"github.com/pitchside/contest/internal/repository"
)

// AdminHandler exposes operational endpoints: the event dead-letter queue.
type AdminHandler struct {
	pool   *pgxpool.Pool
	outbox repository.OutboxRepository
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(pool *pgxpool.Pool, outbox repository.OutboxRepository) *AdminHandler {
	return &AdminHandler{pool: pool, outbox: outbox}
}

// ListDeadLetters handles GET /admin/deadletters.
func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	letters, err := h.outbox.ListDeadLetters(r.Context(), h.pool, limit)
	if err != nil {
		RespondError(w, domain.ErrInternal("list dead letters", err))
		return
	}
	RespondJSON(w, http.StatusOK, letters)
}
