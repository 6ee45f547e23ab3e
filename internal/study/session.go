package study

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardlab-backend/internal/models"
)

// Phase is the lifecycle position of a study session.
type Phase int

const (
	PhaseIdle      Phase = iota + 1 // No session started yet.
	PhaseLoading                    // Due-card fetch in flight.
	PhaseActive                     // Iterating over the due cards.
	PhaseEmpty                      // Started, but nothing was due.
	PhaseFailed                     // Start failed; retry available.
	PhaseCompleted                  // Exhausted or ended early.
)

var sessionPhaseNames = [...]string{
	PhaseIdle:      "idle",
	PhaseLoading:   "loading",
	PhaseActive:    "active",
	PhaseEmpty:     "empty",
	PhaseFailed:    "failed",
	PhaseCompleted: "completed",
}

func (p Phase) String() string {
	if p >= PhaseIdle && p <= PhaseCompleted {
		return sessionPhaseNames[p]
	}
	return "unknown"
}

var (
	ErrBusy          = errors.New("operation already in flight")
	ErrNotActive     = errors.New("no active study session")
	ErrNotRevealed   = errors.New("current card has not been revealed")
	ErrAlreadyDone   = errors.New("study session already completed")
	ErrNotCompleted  = errors.New("study session is not completed")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// SessionData is the due-card batch handed back by the scheduling backend.
// Which cards are due, and in what order, is entirely the backend's call.
type SessionData struct {
	SessionID     uuid.UUID
	Flashcards    []models.Flashcard
	AverageRating *float64
}

// Backend is the external scheduling and persistence service the session
// controller consumes.
type Backend interface {
	StartSession(ctx context.Context) (*SessionData, error)
	SubmitRating(ctx context.Context, sessionID, flashcardID uuid.UUID, rating int) (*float64, error)
	CompleteSession(ctx context.Context, sessionID uuid.UUID) error
}

// Controller drives one study session from start to completion. The card
// sequence is fixed at start; the cursor only moves forward; the reveal
// flag resets on every advance. A mutex serializes intents arriving from
// concurrent requests, and an epoch counter discards responses that
// resolve after the session they were issued for has been replaced.
type Controller struct {
	mu      sync.Mutex
	backend Backend
	clock   Clock
	gate    *FlipGate

	phase       Phase
	sessionID   uuid.UUID
	startedAt   time.Time
	completedAt *time.Time
	cards       []models.Flashcard
	current     int
	revealed    bool
	isRating    bool
	inFlight    bool
	avgRating   *float64
	errMessage  string
	epoch       uint64
}

func NewController(backend Backend, clock Clock) *Controller {
	return &Controller{
		backend: backend,
		clock:   clock,
		gate:    NewFlipGate(clock),
		phase:   PhaseIdle,
	}
}

// Start fetches the due-card batch and begins a session. An empty due set
// is a valid outcome distinct from an error; both leave Start re-invokable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight || c.isRating {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.epoch++
	epoch := c.epoch
	c.phase = PhaseLoading
	c.errMessage = ""
	c.cards = nil
	c.completedAt = nil
	c.avgRating = nil
	c.mu.Unlock()

	data, err := c.backend.StartSession(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if epoch != c.epoch {
		return nil
	}
	if err != nil {
		c.phase = PhaseFailed
		c.errMessage = userMessage(err, "Failed to start the study session. Please try again.")
		return err
	}
	if len(data.Flashcards) == 0 {
		c.phase = PhaseEmpty
		c.sessionID = data.SessionID
		return nil
	}
	c.phase = PhaseActive
	c.sessionID = data.SessionID
	c.startedAt = c.clock.Now()
	c.cards = data.Flashcards
	c.current = 0
	c.revealed = false
	c.avgRating = data.AverageRating
	c.gate.ResetFor(c.cards[0].ID.String())
	return nil
}

// Reveal asks the flip gate to show the current card's back. Accepted only
// while the card is still face down; the reveal itself lands after the
// animation window, and only if the session and card are unchanged.
func (c *Controller) Reveal() (bool, error) {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return false, ErrNotActive
	}
	if c.revealed {
		c.mu.Unlock()
		return false, nil
	}
	epoch := c.epoch
	cardID := c.cards[c.current].ID
	c.mu.Unlock()

	accepted := c.gate.Activate(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch || c.phase != PhaseActive {
			return
		}
		if c.cards[c.current].ID != cardID {
			return
		}
		c.revealed = true
	})
	return accepted, nil
}

// Rate submits the rating for the current card. On success the cursor
// advances, or the session completes on the last card. On failure nothing
// moves, so the same rating can be retried safely.
func (c *Controller) Rate(ctx context.Context, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if !c.revealed {
		c.mu.Unlock()
		return ErrNotRevealed
	}
	if c.isRating {
		c.mu.Unlock()
		return ErrBusy
	}
	c.isRating = true
	epoch := c.epoch
	sessionID := c.sessionID
	cardID := c.cards[c.current].ID
	c.mu.Unlock()

	avg, err := c.backend.SubmitRating(ctx, sessionID, cardID, rating)

	c.mu.Lock()
	c.isRating = false
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.errMessage = userMessage(err, "Failed to submit the rating. Please try again.")
		c.mu.Unlock()
		return err
	}
	c.errMessage = ""
	c.avgRating = avg

	if c.current >= len(c.cards)-1 {
		c.completeLocked()
		c.mu.Unlock()
		// Best-effort: local completion stands even if the backend call
		// fails; the session is finished from the user's point of view.
		c.backend.CompleteSession(ctx, sessionID)
		return nil
	}

	c.current++
	c.revealed = false
	c.gate.ResetFor(c.cards[c.current].ID.String())
	c.mu.Unlock()
	return nil
}

// End terminates the session early, bypassing the remaining cards. A no-op
// error once the session is already completed.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseCompleted {
		c.mu.Unlock()
		return ErrAlreadyDone
	}
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	sessionID := c.sessionID
	c.completeLocked()
	c.mu.Unlock()

	c.backend.CompleteSession(ctx, sessionID)
	return nil
}

// Restart replaces a completed session with a fresh one. Also allowed from
// the empty and failed states, where it doubles as the retry affordance.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseCompleted, PhaseEmpty, PhaseFailed:
	default:
		c.mu.Unlock()
		return ErrNotCompleted
	}
	c.mu.Unlock()
	return c.Start(ctx)
}

func (c *Controller) completeLocked() {
	now := c.clock.Now()
	c.completedAt = &now
	c.phase = PhaseCompleted
	c.revealed = false
}

// CardView is the current card as shown to the user; the back stays hidden
// until the card is revealed.
type CardView struct {
	ID       uuid.UUID `json:"id"`
	Front    string    `json:"front"`
	Back     string    `json:"back,omitempty"`
	Revealed bool      `json:"revealed"`
}

// View is the read-only session snapshot handed to the presentation
// surface.
type View struct {
	Phase           string     `json:"phase"`
	SessionID       string     `json:"session_id,omitempty"`
	Card            *CardView  `json:"card,omitempty"`
	DisplayIndex    int        `json:"display_index"`
	FlashcardsCount int        `json:"flashcards_count"`
	Progress        float64    `json:"progress"`
	IsRating        bool       `json:"is_rating"`
	AverageRating   *float64   `json:"average_rating,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// View renders the current state. The display index is clamped so a
// momentary off-by-one can never leak past the card count.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Phase:           c.phase.String(),
		FlashcardsCount: len(c.cards),
		IsRating:        c.isRating,
		AverageRating:   c.avgRating,
		CompletedAt:     c.completedAt,
		Error:           c.errMessage,
	}
	if c.sessionID != uuid.Nil {
		v.SessionID = c.sessionID.String()
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		v.StartedAt = &t
	}
	if c.phase == PhaseActive && len(c.cards) > 0 {
		idx := c.current
		if idx > len(c.cards)-1 {
			idx = len(c.cards) - 1
		}
		card := c.cards[idx]
		cv := &CardView{ID: card.ID, Front: card.Front, Revealed: c.revealed}
		if c.revealed {
			cv.Back = card.Back
		}
		v.Card = cv
		v.DisplayIndex = min(c.current+1, len(c.cards))
		v.Progress = float64(v.DisplayIndex) / float64(len(c.cards))
	}
	if c.phase == PhaseCompleted {
		v.DisplayIndex = len(c.cards)
		v.Progress = 1
		if len(c.cards) == 0 {
			v.Progress = 0
		}
	}
	return v
}

func userMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
