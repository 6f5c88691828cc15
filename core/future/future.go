// Package future holds the subscription primitive of state actors: a
// single-shot future that re-arms after it fired.
package future

import (
	"context"
	"sync"
)

// Promise is one armed round of an Observer.
type Promise[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Wait blocks until the round is resolved or ctx is done.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the round is resolved.
func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// Observer hands every subscriber of the current round the same promise.
// Resolving wakes them all and clears the round; the next Subscribe arms
// a fresh one, so a value is never delivered twice to the same waiter.
type Observer[T any] struct {
	mu      sync.Mutex
	current *Promise[T]
}

// Subscribe returns the armed promise, arming one if there is none.
func (o *Observer[T]) Subscribe() *Promise[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		o.current = &Promise[T]{done: make(chan struct{})}
	}
	return o.current
}

// Resolve delivers v to the current round. Without subscribers it is a no-op.
func (o *Observer[T]) Resolve(v T) bool {
	return o.settle(v, nil)
}

// Reject delivers err to the current round.
func (o *Observer[T]) Reject(err error) bool {
	var zero T
	return o.settle(zero, err)
}

// Pending reports whether a round is armed.
func (o *Observer[T]) Pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

func (o *Observer[T]) settle(v T, err error) bool {
	o.mu.Lock()
	p := o.current
	o.current = nil
	o.mu.Unlock()

	if p == nil {
		return false
	}
	p.value, p.err = v, err
	close(p.done)
	return true
}
