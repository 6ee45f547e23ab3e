package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cardlab-backend/internal/middleware"
	"cardlab-backend/internal/models"
	"cardlab-backend/internal/repository"
	"cardlab-backend/internal/review"
)

// FlashcardHandler covers the manual CRUD surface of the card collection.
type FlashcardHandler struct {
	flashRepo *repository.FlashcardRepo
}

func NewFlashcardHandler(flashRepo *repository.FlashcardRepo) *FlashcardHandler {
	return &FlashcardHandler{flashRepo: flashRepo}
}

func (h *FlashcardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	cards, err := h.flashRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list flashcards", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flashcards": cards,
		"total":      len(cards),
	})
}

func (h *FlashcardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFlashcardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Front == "" || req.Back == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Front and back must not be empty", r))
		return
	}

	card := &models.Flashcard{
		UserID: middleware.GetUserID(r.Context()),
		Front:  req.Front,
		Back:   req.Back,
		Source: review.SourceManual,
	}
	if err := h.flashRepo.Create(r.Context(), card); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create flashcard", r))
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

func (h *FlashcardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid flashcard ID", r))
		return
	}

	var req models.UpdateFlashcardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Front == "" || req.Back == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Front and back must not be empty", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.flashRepo.Update(r.Context(), id, userID, req.Front, req.Back); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Flashcard not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update flashcard", r))
		return
	}

	card, err := h.flashRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load flashcard", r))
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *FlashcardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid flashcard ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.flashRepo.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Flashcard not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete flashcard", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Flashcard deleted"})
}

func (h *FlashcardHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No flashcard IDs provided", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	deleted, err := h.flashRepo.BulkDelete(r.Context(), userID, req.IDs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete flashcards", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}
