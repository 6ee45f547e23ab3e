package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cardlab-backend/internal/models"
	"cardlab-backend/internal/repository"
	"cardlab-backend/internal/review"
)

// CommitService persists accepted proposal batches. ForUser binds it to
// one user so the per-user review controller can hold a plain
// review.Committer.
type CommitService struct {
	flashRepo *repository.FlashcardRepo
	notifier  *Notifier
}

func NewCommitService(flashRepo *repository.FlashcardRepo, notifier *Notifier) *CommitService {
	return &CommitService{flashRepo: flashRepo, notifier: notifier}
}

func (s *CommitService) ForUser(userID uuid.UUID) review.Committer {
	return &userCommitter{service: s, userID: userID}
}

type userCommitter struct {
	service *CommitService
	userID  uuid.UUID
}

func (c *userCommitter) CommitFlashcards(ctx context.Context, records []review.CommitRecord) (int, error) {
	cards := make([]models.Flashcard, len(records))
	for i, rec := range records {
		genID := rec.GenerationID
		cards[i] = models.Flashcard{
			UserID:       c.userID,
			Front:        rec.Front,
			Back:         rec.Back,
			Source:       rec.Source,
			GenerationID: &genID,
		}
	}

	count, err := c.service.flashRepo.BulkCreate(ctx, cards)
	if err != nil {
		return 0, fmt.Errorf("failed to save flashcards: %w", err)
	}

	if len(records) > 0 {
		c.service.notifier.Publish(ctx, c.userID, models.Notification{
			Type: "flashcards_committed",
			Payload: models.CommitCompletedEvent{
				GenerationID: records[0].GenerationID,
				Count:        count,
			},
		})
	}
	return count, nil
}
