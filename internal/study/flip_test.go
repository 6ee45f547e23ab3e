package study

import (
	"testing"
	"time"
)

func TestActivateAcceptedFromRest(t *testing.T) {
	clock := newFakeClock()
	gate := NewFlipGate(clock)
	gate.ResetFor("card-1")

	fired := 0
	if !gate.Activate(func() { fired++ }) {
		t.Fatal("Expected first activation to be accepted")
	}
	if !gate.Flipping() {
		t.Error("Expected gate to be flipping after accepted activation")
	}
	if fired != 0 {
		t.Errorf("Callback must not fire before the animation window, fired %d times", fired)
	}

	clock.Advance(FlipDuration)
	if fired != 1 {
		t.Errorf("Expected callback to fire exactly once by %v, fired %d times", FlipDuration, fired)
	}
	if gate.Flipping() {
		t.Error("Expected flip to be finished")
	}
}

// A second activation strictly inside the animation window is dropped, and
// the callback still fires exactly once.
func TestActivateRejectedWhileFlipping(t *testing.T) {
	clock := newFakeClock()
	gate := NewFlipGate(clock)
	gate.ResetFor("card-1")

	fired := 0
	gate.Activate(func() { fired++ })

	clock.Advance(100 * time.Millisecond)
	if gate.Activate(func() { fired++ }) {
		t.Error("Expected activation at t=100ms to be rejected (inside flip window)")
	}

	clock.Advance(200 * time.Millisecond)
	if fired != 1 {
		t.Errorf("Expected exactly one callback by t=300ms, got %d", fired)
	}
}

// After the animation window but inside the debounce window the activation
// is still dropped; only after both windows elapse does one succeed.
func TestActivateDebounceWindow(t *testing.T) {
	clock := newFakeClock()
	gate := NewFlipGate(clock)
	gate.ResetFor("card-1")

	fired := 0
	if !gate.Activate(func() { fired++ }) {
		t.Fatal("Expected activation at t=0 to be accepted")
	}

	clock.Advance(400 * time.Millisecond) // flip done at 300ms
	if gate.Activate(func() { fired++ }) {
		t.Error("Expected activation at t=400ms to be rejected (inside debounce window)")
	}

	clock.Advance(200 * time.Millisecond)
	if !gate.Activate(func() { fired++ }) {
		t.Error("Expected activation at t=600ms to be accepted")
	}

	clock.Advance(FlipDuration)
	if fired != 2 {
		t.Errorf("Expected two callbacks in total, got %d", fired)
	}
}

func TestResetCancelsPendingTimer(t *testing.T) {
	clock := newFakeClock()
	gate := NewFlipGate(clock)
	gate.ResetFor("card-1")

	fired := 0
	gate.Activate(func() { fired++ })

	// Card swapped out mid-flip: the old timer must not fire against the
	// new card.
	gate.ResetFor("card-2")
	clock.Advance(FlipDuration)
	if fired != 0 {
		t.Errorf("Expected stale timer to be cancelled, callback fired %d times", fired)
	}
}

func TestResetClearsDebounce(t *testing.T) {
	clock := newFakeClock()
	gate := NewFlipGate(clock)
	gate.ResetFor("card-1")

	gate.Activate(func() {})
	clock.Advance(FlipDuration)

	// Still inside card-1's debounce window, but a new card starts fresh.
	gate.ResetFor("card-2")
	if !gate.Activate(func() {}) {
		t.Error("Expected activation on a fresh card to be accepted immediately")
	}
}
