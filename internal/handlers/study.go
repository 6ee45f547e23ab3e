package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"cardlab-backend/internal/middleware"
	"cardlab-backend/internal/models"
	"cardlab-backend/internal/registry"
	"cardlab-backend/internal/study"
)

// StudyHandler drives the per-user study session controller.
type StudyHandler struct {
	registry *registry.Registry
}

func NewStudyHandler(reg *registry.Registry) *StudyHandler {
	return &StudyHandler{registry: reg}
}

func (h *StudyHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Study(middleware.GetUserID(r.Context()))
	if err := ctrl.Start(r.Context()); err != nil {
		h.handleStudyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *StudyHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Study(middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusOK, ctrl.View())
}

// Reveal requests the flip. A rejected activation (mid-flip or inside the
// debounce window) is not an error; the response reports whether it took.
func (h *StudyHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Study(middleware.GetUserID(r.Context()))
	accepted, err := ctrl.Reveal()
	if err != nil {
		h.handleStudyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted": accepted,
		"state":    ctrl.View(),
	})
}

func (h *StudyHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req models.RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	ctrl := h.registry.Study(middleware.GetUserID(r.Context()))
	if err := ctrl.Rate(r.Context(), req.Rating); err != nil {
		h.handleStudyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *StudyHandler) End(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Study(middleware.GetUserID(r.Context()))
	if err := ctrl.End(r.Context()); err != nil {
		h.handleStudyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *StudyHandler) Restart(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Study(middleware.GetUserID(r.Context()))
	if err := ctrl.Restart(r.Context()); err != nil {
		h.handleStudyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *StudyHandler) handleStudyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, study.ErrInvalidRating):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, study.ErrNotRevealed):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, study.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, study.ErrNotActive),
		errors.Is(err, study.ErrAlreadyDone),
		errors.Is(err, study.ErrNotCompleted):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	default:
		handleServiceError(w, r, err)
	}
}
