package handlers

import (
	"net/http"

	"github.com/fkoester/sevactual/internal/api/dto"
	"github.com/fkoester/sevactual/internal/storage"
)

// StatsHandler serves aggregate sync statistics.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{Base: NewBase(repo)}
}

// Get returns the current aggregate counts.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}
