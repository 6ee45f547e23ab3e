package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cardlab-backend/internal/review"
	"cardlab-backend/internal/study"
)

// How long a user's controllers survive without being touched.
const idleTTL = 2 * time.Hour

// CommitterFactory yields the committer bound to one user's card collection.
type CommitterFactory interface {
	ForUser(userID uuid.UUID) review.Committer
}

// BackendFactory yields the scheduling backend bound to one user.
type BackendFactory interface {
	ForUser(userID uuid.UUID) study.Backend
}

type entry struct {
	review     *review.Controller
	study      *study.Controller
	lastAccess time.Time
}

// Registry hands out the per-user review and study controllers. Controllers
// are created lazily on first access and reaped after idleTTL so abandoned
// sessions do not accumulate.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry

	generator review.Generator
	commits   CommitterFactory
	sessions  BackendFactory
	clock     study.Clock
}

func New(generator review.Generator, commits CommitterFactory, sessions BackendFactory, clock study.Clock) *Registry {
	reg := &Registry{
		entries:   make(map[uuid.UUID]*entry),
		generator: generator,
		commits:   commits,
		sessions:  sessions,
		clock:     clock,
	}

	// Reaper goroutine
	go func() {
		for {
			time.Sleep(idleTTL / 4)
			reg.mu.Lock()
			for id, e := range reg.entries {
				if time.Since(e.lastAccess) > idleTTL {
					delete(reg.entries, id)
				}
			}
			reg.mu.Unlock()
		}
	}()

	return reg
}

func (r *Registry) forUser(userID uuid.UUID) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{
			review: review.NewController(r.generator, r.commits.ForUser(userID)),
			study:  study.NewController(r.sessions.ForUser(userID), r.clock),
		}
		r.entries[userID] = e
	}
	e.lastAccess = time.Now()
	return e
}

// Review returns the user's proposal review controller.
func (r *Registry) Review(userID uuid.UUID) *review.Controller {
	return r.forUser(userID).review
}

// Study returns the user's study session controller.
func (r *Registry) Study(userID uuid.UUID) *study.Controller {
	return r.forUser(userID).study
}
