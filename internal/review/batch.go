package review

import (
	"errors"
	"fmt"
)

var ErrProposalNotFound = errors.New("proposal not found")

// CardText is one candidate front/back pair as returned by the generator.
type CardText struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Proposal is a candidate flashcard under review. Text is mutated only
// through Batch.Edit, so edited content can never exist without the
// edited status.
type Proposal struct {
	TempID string `json:"temp_id"`
	Front  string `json:"front"`
	Back   string `json:"back"`
	Status Status `json:"status"`
}

// Batch holds the proposals of one generation request in display order.
// Status transitions never reorder entries, and all counts are recomputed
// from the live slice on every read.
type Batch struct {
	generationID string
	proposals    []Proposal
}

func NewBatch() *Batch {
	return &Batch{}
}

// ReplaceAll discards any prior batch and installs a fresh one with every
// proposal pending. Temp ids are "<generationID>-<index>" and are never
// reused within a batch.
func (b *Batch) ReplaceAll(generationID string, cards []CardText) {
	b.generationID = generationID
	b.proposals = make([]Proposal, len(cards))
	for i, c := range cards {
		b.proposals[i] = Proposal{
			TempID: fmt.Sprintf("%s-%d", generationID, i),
			Front:  c.Front,
			Back:   c.Back,
			Status: StatusPending,
		}
	}
}

// Clear empties the batch.
func (b *Batch) Clear() {
	b.generationID = ""
	b.proposals = nil
}

func (b *Batch) GenerationID() string {
	return b.generationID
}

// Accept marks the proposal accepted. Accepting a rejected proposal is the
// restore transition; accepting twice is a no-op.
func (b *Batch) Accept(tempID string) error {
	p := b.find(tempID)
	if p == nil {
		return ErrProposalNotFound
	}
	p.Status = StatusAccepted
	return nil
}

// Reject marks the proposal rejected. Idempotent.
func (b *Batch) Reject(tempID string) error {
	p := b.find(tempID)
	if p == nil {
		return ErrProposalNotFound
	}
	p.Status = StatusRejected
	return nil
}

// Edit replaces the proposal text and marks it edited in one transition.
// Editing implies acceptance.
func (b *Batch) Edit(tempID, front, back string) error {
	p := b.find(tempID)
	if p == nil {
		return ErrProposalNotFound
	}
	p.Front = front
	p.Back = back
	p.Status = StatusEdited
	return nil
}

func (b *Batch) find(tempID string) *Proposal {
	for i := range b.proposals {
		if b.proposals[i].TempID == tempID {
			return &b.proposals[i]
		}
	}
	return nil
}

// Proposals returns a copy of the batch in display order.
func (b *Batch) Proposals() []Proposal {
	out := make([]Proposal, len(b.proposals))
	copy(out, b.proposals)
	return out
}

func (b *Batch) Total() int {
	return len(b.proposals)
}

// AcceptedCount counts proposals with status accepted or edited.
func (b *Batch) AcceptedCount() int {
	n := 0
	for i := range b.proposals {
		if b.proposals[i].Status.Accepted() {
			n++
		}
	}
	return n
}

// ReviewedCount counts proposals whose status is anything but pending.
func (b *Batch) ReviewedCount() int {
	n := 0
	for i := range b.proposals {
		if b.proposals[i].Status.Reviewed() {
			n++
		}
	}
	return n
}
