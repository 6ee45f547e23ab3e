package models

import (
	"time"

	"github.com/google/uuid"
)

type StudySession struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	FlashcardsCount int        `json:"flashcards_count"`
	AverageRating   *float64   `json:"average_rating,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type SessionRating struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	FlashcardID uuid.UUID `json:"flashcard_id"`
	Rating      int       `json:"rating"`
	RatedAt     time.Time `json:"rated_at"`
}
