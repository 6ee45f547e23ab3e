package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cardlab-backend/internal/middleware"
	"cardlab-backend/internal/models"
	"cardlab-backend/internal/registry"
	"cardlab-backend/internal/review"
	"cardlab-backend/internal/services"
)

const maxUploadSize = 20 << 20 // 20 MB

// GenerationHandler drives the per-user generate → review → commit workflow.
type GenerationHandler struct {
	registry    *registry.Registry
	extract     *services.FileExtractService
	storagePath string
}

func NewGenerationHandler(reg *registry.Registry, extract *services.FileExtractService, storagePath string) *GenerationHandler {
	return &GenerationHandler{registry: reg, extract: extract, storagePath: storagePath}
}

// Generate runs the proposal generation synchronously and returns the fresh
// review view-model.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	ctrl := h.registry.Review(middleware.GetUserID(r.Context()))
	if err := ctrl.Generate(r.Context(), req.SourceText); err != nil {
		h.handleReviewError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ctrl.View())
}

// View returns the current review view-model.
func (h *GenerationHandler) View(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Review(middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *GenerationHandler) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Review(middleware.GetUserID(r.Context()))
	if err := ctrl.Accept(chi.URLParam(r, "tempID")); err != nil {
		h.handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *GenerationHandler) RejectProposal(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Review(middleware.GetUserID(r.Context()))
	if err := ctrl.Reject(chi.URLParam(r, "tempID")); err != nil {
		h.handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *GenerationHandler) EditProposal(w http.ResponseWriter, r *http.Request) {
	var req models.EditProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Front == "" || req.Back == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Front and back must not be empty", r))
		return
	}

	ctrl := h.registry.Review(middleware.GetUserID(r.Context()))
	if err := ctrl.Edit(chi.URLParam(r, "tempID"), req.Front, req.Back); err != nil {
		h.handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

// Commit saves the accepted proposals and returns the post-commit view-model
// together with the committed count.
func (h *GenerationHandler) Commit(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Review(middleware.GetUserID(r.Context()))
	count, err := ctrl.Commit(r.Context())
	if err != nil {
		h.handleReviewError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"committed": count,
		"state":     ctrl.View(),
	})
}

// StartOver abandons the current batch.
func (h *GenerationHandler) StartOver(w http.ResponseWriter, r *http.Request) {
	ctrl := h.registry.Review(middleware.GetUserID(r.Context()))
	if err := ctrl.StartOver(); err != nil {
		h.handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.View())
}

// Extract accepts a txt/md/pdf upload and returns the extracted source text,
// ready to be submitted to Generate.
func (h *GenerationHandler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File too large or malformed upload", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing file field", r))
		return
	}
	defer file.Close()

	// Spool to disk; the pdf reader needs a seekable file.
	tmpName := uuid.New().String() + filepath.Ext(header.Filename)
	tmpPath := filepath.Join(h.storagePath, tmpName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return
	}
	defer os.Remove(tmpPath)

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return
	}
	dst.Close()

	text, err := h.extract.ExtractTextFromPath(tmpPath)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"source_text": text})
}

func (h *GenerationHandler) handleReviewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, review.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, review.ErrNotReviewing):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, review.ErrNothingToCommit):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, review.ErrProposalNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", err.Error(), r))
	default:
		handleServiceError(w, r, err)
	}
}
