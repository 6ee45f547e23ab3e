package repository

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardlab-backend/internal/models"
)

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

func (r *FlashcardRepo) Create(ctx context.Context, card *models.Flashcard) error {
	card.ID = uuid.New()

	query := `INSERT INTO flashcards
		(id, user_id, front, back, source, generation_id, interval_days, ease_factor, repetitions, next_review_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING interval_days, ease_factor, repetitions, next_review_at, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		card.ID, card.UserID, card.Front, card.Back, card.Source, card.GenerationID,
		1, 2.50, 0, time.Now(),
	).Scan(&card.IntervalDays, &card.EaseFactor, &card.Repetitions,
		&card.NextReviewAt, &card.CreatedAt, &card.UpdatedAt)
}

// BulkCreate inserts a committed batch in one transaction. All-or-nothing:
// a failure on any card rolls the whole batch back.
func (r *FlashcardRepo) BulkCreate(ctx context.Context, cards []models.Flashcard) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	for i := range cards {
		cards[i].ID = uuid.New()
		_, err := tx.Exec(ctx,
			`INSERT INTO flashcards
			 (id, user_id, front, back, source, generation_id, interval_days, ease_factor, repetitions, next_review_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			cards[i].ID, cards[i].UserID, cards[i].Front, cards[i].Back,
			cards[i].Source, cards[i].GenerationID, 1, 2.50, 0, time.Now(),
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(cards), nil
}

func (r *FlashcardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Flashcard, error) {
	card := &models.Flashcard{}
	query := `SELECT id, user_id, front, back, source, generation_id, interval_days,
		ease_factor, repetitions, next_review_at, last_reviewed_at, created_at, updated_at
		FROM flashcards WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&card.ID, &card.UserID, &card.Front, &card.Back, &card.Source, &card.GenerationID,
		&card.IntervalDays, &card.EaseFactor, &card.Repetitions,
		&card.NextReviewAt, &card.LastReviewedAt, &card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (r *FlashcardRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Flashcard, error) {
	query := `SELECT id, user_id, front, back, source, generation_id, interval_days,
		ease_factor, repetitions, next_review_at, last_reviewed_at, created_at, updated_at
		FROM flashcards WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFlashcards(rows)
}

// DueCards returns the cards the scheduler considers ready for review,
// oldest due first.
func (r *FlashcardRepo) DueCards(ctx context.Context, userID uuid.UUID, limit int) ([]models.Flashcard, error) {
	query := `SELECT id, user_id, front, back, source, generation_id, interval_days,
		ease_factor, repetitions, next_review_at, last_reviewed_at, created_at, updated_at
		FROM flashcards
		WHERE user_id = $1 AND next_review_at <= NOW()
		ORDER BY next_review_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFlashcards(rows)
}

func (r *FlashcardRepo) Update(ctx context.Context, id, userID uuid.UUID, front, back string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE flashcards SET front = $1, back = $2, updated_at = NOW()
		 WHERE id = $3 AND user_id = $4`,
		front, back, id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *FlashcardRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM flashcards WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *FlashcardRepo) BulkDelete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM flashcards WHERE user_id = $1 AND id = ANY($2)", userID, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Rate reschedules a card from a 1-5 recall rating using an SM-2 variant.
// Ratings 1-2 reset the learning streak; 3-5 advance it. Pure math, no
// model involvement.
func (r *FlashcardRepo) Rate(ctx context.Context, cardID uuid.UUID, rating int) error {
	var interval int
	var easeFactor float64
	var repetitions int

	err := r.pool.QueryRow(ctx,
		"SELECT interval_days, ease_factor, repetitions FROM flashcards WHERE id = $1",
		cardID,
	).Scan(&interval, &easeFactor, &repetitions)
	if err != nil {
		return err
	}

	interval, easeFactor, repetitions = nextSchedule(rating, interval, easeFactor, repetitions)
	nextReview := time.Now().AddDate(0, 0, interval)

	_, err = r.pool.Exec(ctx,
		`UPDATE flashcards SET interval_days = $1, ease_factor = $2, repetitions = $3,
		 next_review_at = $4, last_reviewed_at = NOW(), updated_at = NOW() WHERE id = $5`,
		interval, easeFactor, repetitions, nextReview, cardID,
	)
	return err
}

// nextSchedule maps a 1-5 rating onto the SM-2 recurrence. The quality
// scale is shifted so 5 is effortless recall and anything below 3 is a
// lapse.
func nextSchedule(rating, interval int, easeFactor float64, repetitions int) (int, float64, int) {
	if rating < 3 {
		repetitions = 0
		interval = 1
	} else {
		repetitions++
		switch repetitions {
		case 1:
			interval = 1
		case 2:
			interval = 6
		default:
			interval = int(math.Round(float64(interval) * easeFactor))
		}
	}

	// EF' = EF + (0.1 - (5 - q) * (0.08 + (5 - q) * 0.02))
	q := float64(rating)
	easeFactor = easeFactor + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if easeFactor < 1.3 {
		easeFactor = 1.3
	}

	return interval, easeFactor, repetitions
}

func scanFlashcards(rows pgx.Rows) ([]models.Flashcard, error) {
	var cards []models.Flashcard
	for rows.Next() {
		c := models.Flashcard{}
		err := rows.Scan(
			&c.ID, &c.UserID, &c.Front, &c.Back, &c.Source, &c.GenerationID,
			&c.IntervalDays, &c.EaseFactor, &c.Repetitions,
			&c.NextReviewAt, &c.LastReviewedAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
