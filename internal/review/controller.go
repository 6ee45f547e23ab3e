package review

import (
	"context"
	"errors"
	"sync"
)

// Phase is the lifecycle position of the generation workflow.
type Phase int

const (
	PhaseIdle       Phase = iota + 1 // No batch; ready to generate.
	PhaseGenerating                  // Generation request in flight.
	PhaseReviewing                   // Batch present; collecting decisions.
	PhaseSaving                      // Commit request in flight.
)

var phaseNames = [...]string{
	PhaseIdle:       "idle",
	PhaseGenerating: "generating",
	PhaseReviewing:  "reviewing",
	PhaseSaving:     "saving",
}

func (p Phase) String() string {
	if p >= PhaseIdle && p <= PhaseSaving {
		return phaseNames[p]
	}
	return "unknown"
}

var (
	// ErrBusy is returned when generate, commit, or start-over is invoked
	// while another network operation is still in flight.
	ErrBusy = errors.New("operation already in flight")

	// ErrNotReviewing is returned for review intents outside the reviewing
	// phase.
	ErrNotReviewing = errors.New("no batch under review")

	// ErrNothingToCommit is the local validation failure for a commit with
	// an empty accepted set. It never reaches the network.
	ErrNothingToCommit = errors.New("no accepted proposals to save")
)

// GenerationResult is the outcome of one successful generation request.
type GenerationResult struct {
	GenerationID string
	Cards        []CardText
}

// Generator produces candidate flashcards from a block of source text.
type Generator interface {
	GenerateProposals(ctx context.Context, sourceText string) (*GenerationResult, error)
}

// CommitRecord is one accepted proposal mapped to a persistence record,
// tagged with its provenance.
type CommitRecord struct {
	Front        string
	Back         string
	Source       string // "ai-full" for accepted, "ai-edited" for edited
	GenerationID string
}

// Provenance tags carried on committed records.
const (
	SourceAIFull   = "ai-full"
	SourceAIEdited = "ai-edited"
	SourceManual   = "manual"
)

// Committer persists a set of accepted proposals. All-or-nothing: partial
// success is not modeled.
type Committer interface {
	CommitFlashcards(ctx context.Context, records []CommitRecord) (int, error)
}

// Controller sequences the generate → review → commit lifecycle for one
// user. Intents arrive from concurrent HTTP requests, so a mutex stands in
// for the single-threaded event loop: every operation runs to completion
// (or to its network call) without interleaving. A response arriving after
// StartOver invalidated its epoch is discarded silently.
type Controller struct {
	mu        sync.Mutex
	generator Generator
	committer Committer

	batch           *Batch
	phase           Phase
	inFlight        bool
	epoch           uint64
	errMessage      string
	lastCommitCount int
}

func NewController(generator Generator, committer Committer) *Controller {
	return &Controller{
		generator: generator,
		committer: committer,
		batch:     NewBatch(),
		phase:     PhaseIdle,
	}
}

// Generate submits source text and installs the resulting batch. Any prior
// batch and error are cleared immediately on entry so stale proposals never
// outlive the request that replaces them.
func (c *Controller) Generate(ctx context.Context, sourceText string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.epoch++
	epoch := c.epoch
	c.phase = PhaseGenerating
	c.errMessage = ""
	c.lastCommitCount = 0
	c.batch.Clear()
	c.mu.Unlock()

	result, err := c.generator.GenerateProposals(ctx, sourceText)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		// Abandoned via StartOver while in flight; the response is stale
		// and must not touch whatever state replaced it.
		return nil
	}
	c.inFlight = false
	if err != nil {
		c.phase = PhaseIdle
		c.errMessage = userMessage(err, "Failed to generate flashcards. Please try again.")
		return err
	}
	c.batch.ReplaceAll(result.GenerationID, result.Cards)
	c.phase = PhaseReviewing
	return nil
}

// Accept marks a proposal accepted; on a rejected proposal this is the
// restore transition.
func (c *Controller) Accept(tempID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReviewing {
		return ErrNotReviewing
	}
	return c.batch.Accept(tempID)
}

// Reject marks a proposal rejected. Idempotent.
func (c *Controller) Reject(tempID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReviewing {
		return ErrNotReviewing
	}
	return c.batch.Reject(tempID)
}

// Edit applies new text and the edited status in a single transition.
func (c *Controller) Edit(tempID, front, back string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReviewing {
		return ErrNotReviewing
	}
	return c.batch.Edit(tempID, front, back)
}

// Commit persists the accepted ∪ edited subset. A failed commit keeps the
// batch and the reviewing phase so no decisions are lost; a successful one
// clears everything and reports the committed count.
func (c *Controller) Commit(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return 0, ErrBusy
	}
	if c.phase != PhaseReviewing {
		c.mu.Unlock()
		return 0, ErrNotReviewing
	}
	records := c.commitRecords()
	if c.batch.GenerationID() == "" || len(records) == 0 {
		c.errMessage = ErrNothingToCommit.Error()
		c.mu.Unlock()
		return 0, ErrNothingToCommit
	}
	c.inFlight = true
	epoch := c.epoch
	c.phase = PhaseSaving
	c.errMessage = ""
	c.mu.Unlock()

	count, err := c.committer.CommitFlashcards(ctx, records)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return 0, nil
	}
	c.inFlight = false
	if err != nil {
		c.phase = PhaseReviewing
		c.errMessage = userMessage(err, "Failed to save flashcards. Please try again.")
		return 0, err
	}
	c.batch.Clear()
	c.phase = PhaseIdle
	c.lastCommitCount = count
	return count, nil
}

// StartOver abandons the current batch and returns to idle. Available from
// every phase except saving: interrupting an in-flight commit would leave
// the outcome ambiguous, so the triggering control stays disabled until it
// resolves. An abandoned generate resolves against a bumped epoch and is
// discarded.
func (c *Controller) StartOver() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSaving {
		return ErrBusy
	}
	c.inFlight = false
	c.epoch++
	c.batch.Clear()
	c.phase = PhaseIdle
	c.errMessage = ""
	c.lastCommitCount = 0
	return nil
}

func (c *Controller) commitRecords() []CommitRecord {
	var records []CommitRecord
	for _, p := range c.batch.Proposals() {
		switch p.Status {
		case StatusAccepted:
			records = append(records, CommitRecord{
				Front:        p.Front,
				Back:         p.Back,
				Source:       SourceAIFull,
				GenerationID: c.batch.GenerationID(),
			})
		case StatusEdited:
			records = append(records, CommitRecord{
				Front:        p.Front,
				Back:         p.Back,
				Source:       SourceAIEdited,
				GenerationID: c.batch.GenerationID(),
			})
		}
	}
	return records
}

// View is the read-only snapshot handed to the presentation surface.
type View struct {
	Phase           string     `json:"phase"`
	GenerationID    string     `json:"generation_id,omitempty"`
	Proposals       []Proposal `json:"proposals"`
	Total           int        `json:"total"`
	AcceptedCount   int        `json:"accepted_count"`
	ReviewedCount   int        `json:"reviewed_count"`
	IsGenerating    bool       `json:"is_generating"`
	IsSaving        bool       `json:"is_saving"`
	Error           string     `json:"error,omitempty"`
	LastCommitCount int        `json:"last_commit_count,omitempty"`
}

// View renders the current state. Counts are derived here on every call,
// never cached.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Phase:           c.phase.String(),
		GenerationID:    c.batch.GenerationID(),
		Proposals:       c.batch.Proposals(),
		Total:           c.batch.Total(),
		AcceptedCount:   c.batch.AcceptedCount(),
		ReviewedCount:   c.batch.ReviewedCount(),
		IsGenerating:    c.phase == PhaseGenerating,
		IsSaving:        c.phase == PhaseSaving,
		Error:           c.errMessage,
		LastCommitCount: c.lastCommitCount,
	}
}

// userMessage extracts a displayable message from a service error, falling
// back to a generic one.
func userMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
