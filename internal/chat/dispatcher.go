package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaitTimeout is returned by the dispatcher waits when no matching event
// arrives within the deadline.
var ErrWaitTimeout = errors.New("timed out waiting for event")

type editWaiter struct {
	match func(Edit) bool
	ch    chan Edit
}

type reactionWaiter struct {
	match func(Reaction) bool
	ch    chan Reaction
}

// Dispatcher fans incoming edit and reaction events out to waiters.
// Transports publish events into it; sessions block on a predicate with a
// timeout. A waiter receives at most one event and is removed on delivery,
// timeout, or context cancellation.
type Dispatcher struct {
	mu        sync.Mutex
	edits     map[*editWaiter]struct{}
	reactions map[*reactionWaiter]struct{}
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		edits:     make(map[*editWaiter]struct{}),
		reactions: make(map[*reactionWaiter]struct{}),
	}
}

// PublishEdit delivers a message edit to every matching waiter.
func (d *Dispatcher) PublishEdit(e Edit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for w := range d.edits {
		if w.match(e) {
			select {
			case w.ch <- e:
			default: // waiter already satisfied
			}
		}
	}
}

// PublishReaction delivers a reaction to every matching waiter.
func (d *Dispatcher) PublishReaction(r Reaction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for w := range d.reactions {
		if w.match(r) {
			select {
			case w.ch <- r:
			default:
			}
		}
	}
}

// WaitForEdit blocks until an edit matching the predicate arrives, the timeout
// elapses (ErrWaitTimeout), or ctx is cancelled.
func (d *Dispatcher) WaitForEdit(ctx context.Context, timeout time.Duration, match func(Edit) bool) (Edit, error) {
	w := &editWaiter{match: match, ch: make(chan Edit, 1)}
	d.mu.Lock()
	d.edits[w] = struct{}{}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.edits, w)
		d.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e := <-w.ch:
		return e, nil
	case <-timer.C:
		return Edit{}, ErrWaitTimeout
	case <-ctx.Done():
		return Edit{}, ctx.Err()
	}
}

// WaitForReaction blocks until a reaction matching the predicate arrives, the
// timeout elapses (ErrWaitTimeout), or ctx is cancelled.
func (d *Dispatcher) WaitForReaction(ctx context.Context, timeout time.Duration, match func(Reaction) bool) (Reaction, error) {
	w := &reactionWaiter{match: match, ch: make(chan Reaction, 1)}
	d.mu.Lock()
	d.reactions[w] = struct{}{}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.reactions, w)
		d.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		return r, nil
	case <-timer.C:
		return Reaction{}, ErrWaitTimeout
	case <-ctx.Done():
		return Reaction{}, ctx.Err()
	}
}
