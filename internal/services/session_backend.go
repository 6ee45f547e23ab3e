package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cardlab-backend/internal/models"
	"cardlab-backend/internal/repository"
	"cardlab-backend/internal/study"
)

// How many due cards one session picks up at most.
const sessionCardLimit = 50

// SessionService is the scheduling backend the study controller consumes:
// it decides which cards are due, records ratings, and reschedules cards.
type SessionService struct {
	sessionRepo *repository.StudySessionRepo
	flashRepo   *repository.FlashcardRepo
	notifier    *Notifier
}

func NewSessionService(sessionRepo *repository.StudySessionRepo, flashRepo *repository.FlashcardRepo, notifier *Notifier) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		flashRepo:   flashRepo,
		notifier:    notifier,
	}
}

func (s *SessionService) ForUser(userID uuid.UUID) study.Backend {
	return &userSessionBackend{service: s, userID: userID}
}

type userSessionBackend struct {
	service *SessionService
	userID  uuid.UUID
}

func (b *userSessionBackend) StartSession(ctx context.Context) (*study.SessionData, error) {
	cards, err := b.service.flashRepo.DueCards(ctx, b.userID, sessionCardLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due cards: %w", err)
	}

	session := &models.StudySession{
		UserID:          b.userID,
		FlashcardsCount: len(cards),
	}
	if err := b.service.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create study session: %w", err)
	}

	return &study.SessionData{
		SessionID:  session.ID,
		Flashcards: cards,
	}, nil
}

func (b *userSessionBackend) SubmitRating(ctx context.Context, sessionID, flashcardID uuid.UUID, rating int) (*float64, error) {
	if err := b.service.sessionRepo.RecordRating(ctx, sessionID, flashcardID, rating); err != nil {
		return nil, fmt.Errorf("failed to record rating: %w", err)
	}
	if err := b.service.flashRepo.Rate(ctx, flashcardID, rating); err != nil {
		return nil, fmt.Errorf("failed to reschedule card: %w", err)
	}
	return b.service.sessionRepo.AverageRating(ctx, sessionID)
}

func (b *userSessionBackend) CompleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := b.service.sessionRepo.Complete(ctx, sessionID); err != nil {
		return err
	}

	session, err := b.service.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil
	}
	b.service.notifier.Publish(ctx, b.userID, models.Notification{
		Type: "session_completed",
		Payload: models.SessionCompletedEvent{
			SessionID:       sessionID.String(),
			FlashcardsCount: session.FlashcardsCount,
			AverageRating:   session.AverageRating,
		},
	})
	return nil
}
