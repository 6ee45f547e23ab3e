package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardlab-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

// Create opens a session row with a fixed card count. Any previous session
// of the user still marked active is closed first, so a restart can never
// leave two open sessions behind.
func (r *StudySessionRepo) Create(ctx context.Context, s *models.StudySession) error {
	_, _ = r.pool.Exec(ctx, `
		UPDATE study_sessions SET completed_at = NOW()
		WHERE user_id = $1 AND completed_at IS NULL
	`, s.UserID)

	s.ID = uuid.New()
	query := `
		INSERT INTO study_sessions (id, user_id, flashcards_count)
		VALUES ($1, $2, $3)
		RETURNING started_at, created_at`

	return r.pool.QueryRow(ctx, query, s.ID, s.UserID, s.FlashcardsCount).
		Scan(&s.StartedAt, &s.CreatedAt)
}

// RecordRating stores one card's rating. Re-rating the same card within a
// session overwrites the previous value, which keeps a retried submission
// from double-counting.
func (r *StudySessionRepo) RecordRating(ctx context.Context, sessionID, flashcardID uuid.UUID, rating int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_ratings (id, session_id, flashcard_id, rating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, flashcard_id)
		DO UPDATE SET rating = EXCLUDED.rating, rated_at = NOW()
	`, uuid.New(), sessionID, flashcardID, rating)
	return err
}

// AverageRating recomputes the session average from the stored ratings.
// Nil when nothing has been rated yet.
func (r *StudySessionRepo) AverageRating(ctx context.Context, sessionID uuid.UUID) (*float64, error) {
	var avg *float64
	err := r.pool.QueryRow(ctx,
		"SELECT AVG(rating)::FLOAT8 FROM session_ratings WHERE session_id = $1",
		sessionID,
	).Scan(&avg)
	if err != nil {
		return nil, err
	}
	return avg, nil
}

func (r *StudySessionRepo) Complete(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions SET completed_at = NOW()
		WHERE id = $1 AND completed_at IS NULL
	`, sessionID)
	return err
}

func (r *StudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	s := &models.StudySession{}
	query := `SELECT s.id, s.user_id, s.started_at, s.completed_at, s.flashcards_count,
		(SELECT AVG(rating)::FLOAT8 FROM session_ratings WHERE session_id = s.id),
		s.created_at
		FROM study_sessions s WHERE s.id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.StartedAt, &s.CompletedAt,
		&s.FlashcardsCount, &s.AverageRating, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
