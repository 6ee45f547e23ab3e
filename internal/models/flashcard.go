package models

import (
	"time"

	"github.com/google/uuid"
)

type Flashcard struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Front          string     `json:"front"`
	Back           string     `json:"back"`
	Source         string     `json:"source"` // "ai-full" | "ai-edited" | "manual"
	GenerationID   *string    `json:"generation_id,omitempty"`
	IntervalDays   int        `json:"interval_days"`
	EaseFactor     float64    `json:"ease_factor"`
	Repetitions    int        `json:"repetitions"`
	NextReviewAt   time.Time  `json:"next_review_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type CreateFlashcardRequest struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type UpdateFlashcardRequest struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type GenerateRequest struct {
	SourceText string `json:"source_text"`
}

type EditProposalRequest struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type RateRequest struct {
	Rating int `json:"rating"` // 1..5
}
