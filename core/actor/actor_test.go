package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestActor(t *testing.T) *Actor {
	a := New(Options{
		ID:                 "test",
		Context:            t.Context(),
		MailboxSize:        10_000,
		MaxConcurrentTasks: 1000,
	})
	t.Cleanup(a.Stop)
	return a
}

func TestActor_Ask(t *testing.T) {
	a := newTestActor(t)
	res, err := Ask(t.Context(), a, "hello", func(hc HandlerCtx) (string, error) {
		return "Hello", nil
	})
	require.NoError(t, err)
	require.Equal(t, "Hello", res)
}

func TestActor_Do_err(t *testing.T) {
	a := newTestActor(t)
	err := a.Do(t.Context(), "fail", func(hc HandlerCtx) error {
		return errors.New("uups")
	})
	require.ErrorContains(t, err, "uups")
}

func TestActor_serial(t *testing.T) {
	a := newTestActor(t)

	// unsynchronised on purpose: the mailbox is the lock
	counter := 0
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Do(context.Background(), "inc", func(HandlerCtx) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	n, err := Ask(t.Context(), a, "read", func(HandlerCtx) (int, error) { return counter, nil })
	require.NoError(t, err)
	require.Equal(t, 100, n)
}

func TestActor_panic_contained(t *testing.T) {
	var panics atomic.Int32
	a := New(Options{
		Context: t.Context(),
		OnPanic: func(any, []byte, string) { panics.Add(1) },
	})
	t.Cleanup(a.Stop)

	err := a.Do(t.Context(), "boom", func(HandlerCtx) error { panic("boom") })
	require.ErrorIs(t, err, ErrPanic)
	require.Equal(t, int32(1), panics.Load())

	// still alive
	v, err := Ask(t.Context(), a, "after", func(HandlerCtx) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestActor_self_request(t *testing.T) {
	a := newTestActor(t)
	err := a.Do(t.Context(), "outer", func(hc HandlerCtx) error {
		return a.Do(hc, "inner", func(HandlerCtx) error { return nil })
	})
	require.ErrorIs(t, err, ErrSelfRequest)
}

func TestActor_schedule(t *testing.T) {
	a := newTestActor(t)
	ch := make(chan int, 1)
	release := make(chan struct{})

	require.NoError(t, a.Do(t.Context(), "spawn", func(hc HandlerCtx) error {
		hc.Schedule(func() {
			<-release
			ch <- 42
		})
		return nil
	}))

	// the mailbox is not blocked by the scheduled task
	_, err := Ask(t.Context(), a, "next", func(HandlerCtx) (bool, error) { return true, nil })
	require.NoError(t, err)

	close(release)
	select {
	case v := <-ch:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestActor_stop(t *testing.T) {
	a := New(Options{Context: t.Context()})

	finished := make(chan struct{})
	require.NoError(t, a.Do(t.Context(), "spawn", func(hc HandlerCtx) error {
		hc.Schedule(func() {
			<-hc.Done()
			close(finished)
		})
		return nil
	}))

	a.Stop()
	a.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before scheduled tasks")
	}
	require.ErrorIs(t, a.Do(t.Context(), "late", func(HandlerCtx) error { return nil }), ErrStopped)
}

func TestActor_ctx_cancel(t *testing.T) {
	a := newTestActor(t)
	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})

	go func() {
		_ = a.Do(context.Background(), "block", func(HandlerCtx) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	err := a.Do(ctx, "waits", func(HandlerCtx) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
