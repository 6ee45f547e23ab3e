package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cardlab-backend/internal/models"
	"cardlab-backend/internal/registry"
	"cardlab-backend/internal/review"
	"cardlab-backend/internal/study"
)

func newStudyRouter(h *StudyHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(withTestUser)
	r.Post("/study-sessions/start", h.Start)
	r.Get("/study-sessions/current", h.Current)
	r.Post("/study-sessions/current/reveal", h.Reveal)
	r.Post("/study-sessions/current/rate", h.Rate)
	r.Post("/study-sessions/current/end", h.End)
	r.Post("/study-sessions/current/restart", h.Restart)
	return r
}

func studyFixture(cards int) (*fakeBackend, *stepClock, http.Handler) {
	var flashcards []models.Flashcard
	for i := 0; i < cards; i++ {
		flashcards = append(flashcards, models.Flashcard{
			ID:    uuid.New(),
			Front: "front",
			Back:  "back",
		})
	}
	backend := &fakeBackend{data: &study.SessionData{
		SessionID:  uuid.New(),
		Flashcards: flashcards,
	}}
	clock := newStepClock()
	gen := &fakeGenerator{result: &review.GenerationResult{}}
	reg := registry.New(gen, &fakeCommitterFactory{committer: &fakeCommitter{}}, &fakeBackendFactory{backend: backend}, clock)
	return backend, clock, newStudyRouter(NewStudyHandler(reg))
}

func decodeSessionView(t *testing.T, rr *httptest.ResponseRecorder) study.View {
	t.Helper()
	var v study.View
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode session view: %v", err)
	}
	return v
}

// ─── Study Handler Tests ───

func TestStudyStart_ActiveSession(t *testing.T) {
	_, _, srv := studyFixture(2)

	rr := do(t, srv, http.MethodPost, "/study-sessions/start", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Start failed: %d %s", rr.Code, rr.Body.String())
	}

	v := decodeSessionView(t, rr)
	if v.Phase != "active" {
		t.Errorf("Expected phase 'active', got %q", v.Phase)
	}
	if v.DisplayIndex != 1 || v.FlashcardsCount != 2 {
		t.Errorf("Expected card 1 of 2, got %d of %d", v.DisplayIndex, v.FlashcardsCount)
	}
	if v.Card == nil || v.Card.Back != "" || v.Card.Revealed {
		t.Errorf("Back face must stay hidden before reveal: %+v", v.Card)
	}
}

func TestStudyStart_EmptyDueSet(t *testing.T) {
	_, _, srv := studyFixture(0)

	rr := do(t, srv, http.MethodPost, "/study-sessions/start", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Start failed: %d", rr.Code)
	}

	v := decodeSessionView(t, rr)
	if v.Phase != "empty" {
		t.Errorf("Expected phase 'empty', got %q", v.Phase)
	}
	if v.Error != "" {
		t.Errorf("Empty due set is not an error, got %q", v.Error)
	}
}

func TestStudyReveal_ShowsBackAfterFlip(t *testing.T) {
	_, clock, srv := studyFixture(2)
	do(t, srv, http.MethodPost, "/study-sessions/start", nil)

	rr := do(t, srv, http.MethodPost, "/study-sessions/current/reveal", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Reveal failed: %d", rr.Code)
	}
	var resp struct {
		Accepted bool       `json:"accepted"`
		State    study.View `json:"state"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode reveal response: %v", err)
	}
	if !resp.Accepted {
		t.Fatal("Expected reveal to be accepted")
	}
	if resp.State.Card.Revealed {
		t.Error("Reveal must not land before the flip window elapses")
	}

	clock.Fire()

	rr = do(t, srv, http.MethodGet, "/study-sessions/current", nil)
	v := decodeSessionView(t, rr)
	if !v.Card.Revealed || v.Card.Back != "back" {
		t.Errorf("Expected revealed back face, got %+v", v.Card)
	}
}

func TestStudyRate_BeforeReveal(t *testing.T) {
	_, _, srv := studyFixture(2)
	do(t, srv, http.MethodPost, "/study-sessions/start", nil)

	rr := do(t, srv, http.MethodPost, "/study-sessions/current/rate", models.RateRequest{Rating: 3})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 rating an unrevealed card, got %d", rr.Code)
	}
}

func TestStudyRate_InvalidRating(t *testing.T) {
	backend, clock, srv := studyFixture(2)
	do(t, srv, http.MethodPost, "/study-sessions/start", nil)
	do(t, srv, http.MethodPost, "/study-sessions/current/reveal", nil)
	clock.Fire()

	for _, rating := range []int{0, -1, 6} {
		rr := do(t, srv, http.MethodPost, "/study-sessions/current/rate", models.RateRequest{Rating: rating})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Rating %d: expected 400, got %d", rating, rr.Code)
		}
	}
	if len(backend.ratings) != 0 {
		t.Errorf("Out-of-range ratings must never reach the backend, got %v", backend.ratings)
	}
}

func TestStudyFullCycle(t *testing.T) {
	backend, clock, srv := studyFixture(2)
	do(t, srv, http.MethodPost, "/study-sessions/start", nil)

	// Card 1
	do(t, srv, http.MethodPost, "/study-sessions/current/reveal", nil)
	clock.Fire()
	rr := do(t, srv, http.MethodPost, "/study-sessions/current/rate", models.RateRequest{Rating: 4})
	if rr.Code != http.StatusOK {
		t.Fatalf("Rate failed: %d %s", rr.Code, rr.Body.String())
	}
	v := decodeSessionView(t, rr)
	if v.Phase != "active" || v.DisplayIndex != 2 {
		t.Errorf("Expected card 2 active, got phase=%q index=%d", v.Phase, v.DisplayIndex)
	}
	if v.Card.Revealed {
		t.Error("Advance must reset the reveal flag")
	}

	// Card 2: the next card accepts a reveal immediately, debounce is
	// per card.
	rr = do(t, srv, http.MethodPost, "/study-sessions/current/reveal", nil)
	var revealResp struct {
		Accepted bool `json:"accepted"`
	}
	json.NewDecoder(rr.Body).Decode(&revealResp)
	if !revealResp.Accepted {
		t.Error("Expected reveal of the next card to be accepted immediately")
	}
	clock.Fire()

	rr = do(t, srv, http.MethodPost, "/study-sessions/current/rate", models.RateRequest{Rating: 2})
	v = decodeSessionView(t, rr)
	if v.Phase != "completed" {
		t.Errorf("Expected completed phase, got %q", v.Phase)
	}
	if v.CompletedAt == nil {
		t.Error("Expected completion timestamp")
	}
	if backend.complete != 1 {
		t.Errorf("Expected exactly one CompleteSession call, got %d", backend.complete)
	}
	if len(backend.ratings) != 2 {
		t.Errorf("Expected 2 ratings submitted, got %v", backend.ratings)
	}
}

func TestStudyEnd_Early(t *testing.T) {
	backend, _, srv := studyFixture(3)
	do(t, srv, http.MethodPost, "/study-sessions/start", nil)

	rr := do(t, srv, http.MethodPost, "/study-sessions/current/end", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("End failed: %d", rr.Code)
	}
	v := decodeSessionView(t, rr)
	if v.Phase != "completed" {
		t.Errorf("Expected completed phase, got %q", v.Phase)
	}
	if backend.complete != 1 {
		t.Errorf("Expected CompleteSession call, got %d", backend.complete)
	}

	// Ending twice is a conflict.
	rr = do(t, srv, http.MethodPost, "/study-sessions/current/end", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 ending a completed session, got %d", rr.Code)
	}
}

func TestStudyRestart_ReplacesSession(t *testing.T) {
	_, _, srv := studyFixture(1)
	do(t, srv, http.MethodPost, "/study-sessions/start", nil)
	do(t, srv, http.MethodPost, "/study-sessions/current/end", nil)

	rr := do(t, srv, http.MethodPost, "/study-sessions/current/restart", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Restart failed: %d %s", rr.Code, rr.Body.String())
	}
	v := decodeSessionView(t, rr)
	if v.Phase != "active" {
		t.Errorf("Expected fresh active session, got %q", v.Phase)
	}
	if v.CompletedAt != nil {
		t.Error("Restart must clear the completion timestamp")
	}
}

func TestStudyRestart_WhileActive(t *testing.T) {
	_, _, srv := studyFixture(2)
	do(t, srv, http.MethodPost, "/study-sessions/start", nil)

	rr := do(t, srv, http.MethodPost, "/study-sessions/current/restart", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 restarting an active session, got %d", rr.Code)
	}
}
