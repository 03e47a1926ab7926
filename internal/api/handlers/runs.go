package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkoester/sevactual/internal/api/dto"
	"github.com/fkoester/sevactual/internal/storage"
)

// RunsHandler serves sync run history.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{Base: NewBase(repo)}
}

// List returns the most recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 50)

	runs, err := h.repo.ListSyncRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	out := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.FromSyncRun(run))
	}
	h.WriteJSON(w, http.StatusOK, out)
}

// Get returns a single run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run id"))
		return
	}

	run, err := h.repo.GetSyncRun(id)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.FromSyncRun(run))
}
