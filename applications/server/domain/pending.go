package domain

import (
	"context"
	"sync"
)

// Pending is the eventual outcome of a batch. It is resolved exactly once.
type Pending struct {
	done    chan struct{}
	once    sync.Once
	outcome BatchOutcome
}

func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved returns an already completed Pending.
func Resolved(outcome BatchOutcome) *Pending {
	p := NewPending()
	p.Resolve(outcome)
	return p
}

// Resolve stores the outcome. Calls after the first one are ignored.
func (p *Pending) Resolve(outcome BatchOutcome) bool {
	resolved := false
	p.once.Do(func() {
		p.outcome = outcome
		close(p.done)
		resolved = true
	})
	return resolved
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the outcome is available or ctx is done. Giving up the
// wait does not stop the batch.
func (p *Pending) Wait(ctx context.Context) (BatchOutcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return BatchOutcome{}, ctx.Err()
	}
}

// Outcome returns the result and whether it is already available.
func (p *Pending) Outcome() (BatchOutcome, bool) {
	select {
	case <-p.done:
		return p.outcome, true
	default:
		return BatchOutcome{}, false
	}
}
