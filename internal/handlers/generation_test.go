package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cardlab-backend/internal/middleware"
	"cardlab-backend/internal/registry"
	"cardlab-backend/internal/review"
	"cardlab-backend/internal/study"
)

// ─── Fakes ───

type fakeGenerator struct {
	mu     sync.Mutex
	result *review.GenerationResult
	err    error
	calls  int
}

func (g *fakeGenerator) GenerateProposals(ctx context.Context, sourceText string) (*review.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type fakeCommitter struct {
	mu      sync.Mutex
	records []review.CommitRecord
	err     error
}

func (c *fakeCommitter) CommitFlashcards(ctx context.Context, records []review.CommitRecord) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.records = append(c.records, records...)
	return len(records), nil
}

type fakeCommitterFactory struct{ committer *fakeCommitter }

func (f *fakeCommitterFactory) ForUser(userID uuid.UUID) review.Committer {
	return f.committer
}

type fakeBackend struct {
	mu       sync.Mutex
	data     *study.SessionData
	err      error
	ratings  []int
	complete int
}

func (b *fakeBackend) StartSession(ctx context.Context) (*study.SessionData, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return b.data, nil
}

func (b *fakeBackend) SubmitRating(ctx context.Context, sessionID, flashcardID uuid.UUID, rating int) (*float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ratings = append(b.ratings, rating)
	avg := 0.0
	for _, r := range b.ratings {
		avg += float64(r)
	}
	avg /= float64(len(b.ratings))
	return &avg, nil
}

func (b *fakeBackend) CompleteSession(ctx context.Context, sessionID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.complete++
	return nil
}

type fakeBackendFactory struct{ backend *fakeBackend }

func (f *fakeBackendFactory) ForUser(userID uuid.UUID) study.Backend {
	return f.backend
}

// stepClock collects scheduled callbacks so tests decide when a flip
// animation finishes.
type stepClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []func()
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Unix(1700000000, 0)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *stepClock) AfterFunc(d time.Duration, f func()) study.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, f)
	return stepTimer{}
}

// Fire runs every pending callback, simulating all open animation windows
// elapsing.
func (c *stepClock) Fire() {
	c.mu.Lock()
	fns := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type stepTimer struct{}

func (stepTimer) Stop() bool { return false }

// ─── Test server plumbing ───

var testUserID = uuid.New()

// withTestUser stands in for the JWT middleware.
func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserIDKey, testUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newGenerationRouter(h *GenerationHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(withTestUser)
	r.Post("/generations", h.Generate)
	r.Get("/generations", h.View)
	r.Delete("/generations", h.StartOver)
	r.Post("/generations/commit", h.Commit)
	r.Post("/generations/proposals/{tempID}/accept", h.AcceptProposal)
	r.Post("/generations/proposals/{tempID}/reject", h.RejectProposal)
	r.Put("/generations/proposals/{tempID}", h.EditProposal)
	return r
}

func do(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) review.View {
	t.Helper()
	var v review.View
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	return v
}

func generationFixture() (*fakeGenerator, *fakeCommitter, http.Handler) {
	gen := &fakeGenerator{
		result: &review.GenerationResult{
			GenerationID: "gen-1",
			Cards: []review.CardText{
				{Front: "What is a goroutine?", Back: "A lightweight thread managed by the Go runtime"},
				{Front: "What does defer do?", Back: "Schedules a call to run when the function returns"},
			},
		},
	}
	committer := &fakeCommitter{}
	reg := registry.New(gen, &fakeCommitterFactory{committer: committer}, &fakeBackendFactory{backend: &fakeBackend{}}, newStepClock())
	h := NewGenerationHandler(reg, nil, "")
	return gen, committer, newGenerationRouter(h)
}

// ─── Generation Handler Tests ───

func TestGenerate_ReturnsReviewingView(t *testing.T) {
	_, _, srv := generationFixture()

	rr := do(t, srv, http.MethodPost, "/generations", map[string]string{"source_text": "some source"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	v := decodeView(t, rr)
	if v.Phase != "reviewing" {
		t.Errorf("Expected phase 'reviewing', got %q", v.Phase)
	}
	if v.Total != 2 || v.AcceptedCount != 0 || v.ReviewedCount != 0 {
		t.Errorf("Unexpected counts: total=%d accepted=%d reviewed=%d", v.Total, v.AcceptedCount, v.ReviewedCount)
	}
	if v.GenerationID != "gen-1" {
		t.Errorf("Expected generation ID 'gen-1', got %q", v.GenerationID)
	}
}

func TestGenerate_InvalidBody(t *testing.T) {
	_, _, srv := generationFixture()

	req := httptest.NewRequest(http.MethodPost, "/generations", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}

func TestAcceptRejectEdit_FlowThroughViews(t *testing.T) {
	_, _, srv := generationFixture()
	do(t, srv, http.MethodPost, "/generations", map[string]string{"source_text": "some source"})

	rr := do(t, srv, http.MethodPost, "/generations/proposals/gen-1-0/accept", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Accept failed: %d %s", rr.Code, rr.Body.String())
	}
	v := decodeView(t, rr)
	if v.AcceptedCount != 1 || v.ReviewedCount != 1 {
		t.Errorf("After accept: accepted=%d reviewed=%d", v.AcceptedCount, v.ReviewedCount)
	}

	rr = do(t, srv, http.MethodPost, "/generations/proposals/gen-1-1/reject", nil)
	v = decodeView(t, rr)
	if v.AcceptedCount != 1 || v.ReviewedCount != 2 {
		t.Errorf("After reject: accepted=%d reviewed=%d", v.AcceptedCount, v.ReviewedCount)
	}

	rr = do(t, srv, http.MethodPut, "/generations/proposals/gen-1-1", map[string]string{
		"front": "Edited front", "back": "Edited back",
	})
	v = decodeView(t, rr)
	if v.AcceptedCount != 2 {
		t.Errorf("Edit should imply acceptance, accepted=%d", v.AcceptedCount)
	}
	if v.Proposals[1].Front != "Edited front" || v.Proposals[1].Status.String() != "edited" {
		t.Errorf("Edited proposal not updated: %+v", v.Proposals[1])
	}
}

func TestAccept_UnknownProposal(t *testing.T) {
	_, _, srv := generationFixture()
	do(t, srv, http.MethodPost, "/generations", map[string]string{"source_text": "some source"})

	rr := do(t, srv, http.MethodPost, "/generations/proposals/nope/accept", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown proposal, got %d", rr.Code)
	}
}

func TestAccept_WithoutBatch(t *testing.T) {
	_, _, srv := generationFixture()

	rr := do(t, srv, http.MethodPost, "/generations/proposals/gen-1-0/accept", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 outside the reviewing phase, got %d", rr.Code)
	}
}

func TestCommit_PersistsAcceptedAndEdited(t *testing.T) {
	_, committer, srv := generationFixture()
	do(t, srv, http.MethodPost, "/generations", map[string]string{"source_text": "some source"})
	do(t, srv, http.MethodPost, "/generations/proposals/gen-1-0/accept", nil)
	do(t, srv, http.MethodPut, "/generations/proposals/gen-1-1", map[string]string{
		"front": "Edited front", "back": "Edited back",
	})

	rr := do(t, srv, http.MethodPost, "/generations/commit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Commit failed: %d %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Committed int         `json:"committed"`
		State     review.View `json:"state"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode commit response: %v", err)
	}
	if resp.Committed != 2 {
		t.Errorf("Expected 2 committed, got %d", resp.Committed)
	}
	if resp.State.Phase != "idle" || resp.State.Total != 0 {
		t.Errorf("Expected empty idle state after commit, got %+v", resp.State)
	}

	if len(committer.records) != 2 {
		t.Fatalf("Expected 2 records persisted, got %d", len(committer.records))
	}
	if committer.records[0].Source != review.SourceAIFull {
		t.Errorf("Accepted record source = %q", committer.records[0].Source)
	}
	if committer.records[1].Source != review.SourceAIEdited || committer.records[1].Front != "Edited front" {
		t.Errorf("Edited record wrong: %+v", committer.records[1])
	}
}

func TestCommit_NothingAccepted(t *testing.T) {
	_, committer, srv := generationFixture()
	do(t, srv, http.MethodPost, "/generations", map[string]string{"source_text": "some source"})

	rr := do(t, srv, http.MethodPost, "/generations/commit", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty accepted set, got %d", rr.Code)
	}
	if len(committer.records) != 0 {
		t.Errorf("Committer should not have been called")
	}
}

func TestStartOver_ClearsBatch(t *testing.T) {
	_, _, srv := generationFixture()
	do(t, srv, http.MethodPost, "/generations", map[string]string{"source_text": "some source"})
	do(t, srv, http.MethodPost, "/generations/proposals/gen-1-0/accept", nil)

	rr := do(t, srv, http.MethodDelete, "/generations", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("StartOver failed: %d", rr.Code)
	}
	v := decodeView(t, rr)
	if v.Phase != "idle" || v.Total != 0 {
		t.Errorf("Expected empty idle state, got %+v", v)
	}
}

func TestGenerate_FailurePropagates(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("model unavailable")}
	reg := registry.New(gen, &fakeCommitterFactory{committer: &fakeCommitter{}}, &fakeBackendFactory{backend: &fakeBackend{}}, newStepClock())
	srv := newGenerationRouter(NewGenerationHandler(reg, nil, ""))

	rr := do(t, srv, http.MethodPost, "/generations", map[string]string{"source_text": "some source"})
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for generator failure, got %d", rr.Code)
	}

	// The failure must leave the workflow retryable.
	rr = do(t, srv, http.MethodGet, "/generations", nil)
	v := decodeView(t, rr)
	if v.Phase != "idle" {
		t.Errorf("Expected idle phase after failure, got %q", v.Phase)
	}
	if v.Error == "" {
		t.Error("Expected error message in view")
	}
}
