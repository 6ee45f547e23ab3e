package study

import (
	"sync"
	"time"
)

// Timing windows for the card flip. The animation window is how long the
// visual flip takes before the reveal callback fires; the debounce window
// is the minimum gap between two accepted activations, so a double-click
// or rapid Enter/Space never fires the callback twice for one card.
const (
	FlipDuration   = 300 * time.Millisecond
	DebounceWindow = 500 * time.Millisecond
)

// FlipGate guards a single timed transition per card. An activation is
// dropped while a flip is in progress or while the debounce window since
// the last accepted activation has not elapsed. What the completed flip
// means (revealing a back face, advancing, anything else) belongs to the
// owner via the callback; the gate only owns the timing.
type FlipGate struct {
	mu             sync.Mutex
	clock          Clock
	cardID         string
	flipping       bool
	lastActivation time.Time
	timer          Timer
}

func NewFlipGate(clock Clock) *FlipGate {
	return &FlipGate{clock: clock}
}

// ResetFor switches the gate to a new card identity: any pending flip
// timer is cancelled so it cannot fire against the new card, and the
// debounce timestamp is cleared.
func (g *FlipGate) ResetFor(cardID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.cardID = cardID
	g.flipping = false
	g.lastActivation = time.Time{}
}

// Activate requests a flip. It reports whether the activation was
// accepted; when it is, onFlipped runs once after the animation window,
// unless the card identity changes first.
func (g *FlipGate) Activate(onFlipped func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.flipping {
		return false
	}
	now := g.clock.Now()
	if !g.lastActivation.IsZero() && now.Sub(g.lastActivation) < DebounceWindow {
		return false
	}

	g.lastActivation = now
	g.flipping = true
	cardID := g.cardID
	g.timer = g.clock.AfterFunc(FlipDuration, func() {
		g.mu.Lock()
		if g.cardID != cardID {
			// Stale timer from a card that was swapped out.
			g.mu.Unlock()
			return
		}
		g.flipping = false
		g.timer = nil
		g.mu.Unlock()
		onFlipped()
	})
	return true
}

// Flipping reports whether an animation window is currently open.
func (g *FlipGate) Flipping() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flipping
}
