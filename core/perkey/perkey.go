// Package perkey serializes work per key while work for different keys
// runs concurrently.
//
// The stores use it to make read-modify-write cycles on one record atomic
// without a global lock. A key only holds a worker while it has work
// queued; idle keys cost nothing.
package perkey

import (
	"context"
	"errors"
	"sync"
)

var ErrSchedulerClosed = errors.New("scheduler is closed")

type Option func(*config)

type config struct {
	bufferSize int
}

// WithBufferSize sets the task buffer size per worker (default: 64).
func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// Scheduler runs tasks such that for any given key they execute one at a
// time, in submission order.
type Scheduler[K comparable] struct {
	mu         sync.Mutex
	workers    map[K]*worker
	closed     bool
	running    sync.WaitGroup
	bufferSize int
}

type worker struct {
	tasks   chan *task
	pending int // guarded by Scheduler.mu
}

type task struct {
	fn   func() error
	done chan error
}

func New[K comparable](opts ...Option) *Scheduler[K] {
	cfg := &config{bufferSize: 64}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Scheduler[K]{
		workers:    make(map[K]*worker),
		bufferSize: cfg.bufferSize,
	}
}

// Do runs fn for key and returns its error.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but stops waiting when ctx is done. A task that was
// already queued still runs.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	done, err := s.Submit(ctx, key, fn)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues fn for key and returns without waiting for it to run.
// Tasks submitted one after another for the same key run in that order.
// The returned channel receives fn's error.
func (s *Scheduler[K]) Submit(ctx context.Context, key K, fn func() error) (<-chan error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	w := s.acquireLocked(key)
	s.mu.Unlock()

	t := &task{fn: fn, done: make(chan error, 1)}

	select {
	case w.tasks <- t:
		return t.done, nil
	case <-ctx.Done():
		s.mu.Lock()
		s.releaseLocked(key, w, true)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Close stops accepting tasks and waits until every queued task ran.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.running.Wait()
}

// Workers is the number of keys with queued or running work.
func (s *Scheduler[K]) Workers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

func (s *Scheduler[K]) acquireLocked(key K) *worker {
	w, ok := s.workers[key]
	if !ok {
		w = &worker{tasks: make(chan *task, s.bufferSize)}
		s.workers[key] = w
		s.running.Add(1)
		go s.run(key, w)
	}
	w.pending++
	return w
}

// releaseLocked retires the worker once nothing is pending for it. The
// worker goroutine itself exits by returning; a caller that gave up before
// enqueueing closes the channel instead.
func (s *Scheduler[K]) releaseLocked(key K, w *worker, closeTasks bool) bool {
	w.pending--
	if w.pending > 0 {
		return false
	}
	delete(s.workers, key)
	if closeTasks {
		close(w.tasks)
	}
	return true
}

func (s *Scheduler[K]) run(key K, w *worker) {
	defer s.running.Done()
	for t := range w.tasks {
		t.done <- t.fn()

		s.mu.Lock()
		retired := s.releaseLocked(key, w, false)
		s.mu.Unlock()
		if retired {
			return
		}
	}
}
