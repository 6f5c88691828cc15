package reducer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/wsactor/core/actor"
	"github.com/codewandler/wsactor/core/future"
	"github.com/codewandler/wsactor/core/perkey"
)

type Options[S, A any] struct {
	Key    string
	Load   Loader[S]
	Reduce Reducer[S, A]
	Log    *slog.Logger
	// ActionName labels an action in logs and metrics.
	ActionName func(A) string
	Actor      actor.Options
}

// effectBuffer bounds the committed effects an actor may have queued
// before its mailbox waits for them.
const effectBuffer = 1024

type StateActor[S Cloner[S], A any] struct {
	a      *actor.Actor
	log    *slog.Logger
	load   Loader[S]
	reduce Reducer[S, A]
	name   func(A) string

	// effects run one at a time in commit order
	effects *perkey.Scheduler[string]
	metrics actor.ActorMetrics

	// owned by the mailbox goroutine
	state ActorState[S]

	updates future.Observer[S]
}

func New[S Cloner[S], A any](opts Options[S, A]) *StateActor[S, A] {
	if opts.Load == nil {
		panic("reducer: Options.Load is required")
	}
	if opts.Reduce == nil {
		panic("reducer: Options.Reduce is required")
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.ActionName == nil {
		opts.ActionName = func(a A) string { return fmt.Sprintf("%T", a) }
	}
	if opts.Actor.Logger == nil {
		opts.Actor.Logger = opts.Log
	}
	if opts.Actor.ID == "" {
		opts.Actor.ID = opts.Key
	}
	if opts.Actor.Metrics == nil {
		opts.Actor.Metrics = actor.NopActorMetrics()
	}
	return &StateActor[S, A]{
		a:      actor.New(opts.Actor),
		log:    opts.Log.With(slog.String("key", opts.Key)),
		load:   opts.Load,
		reduce: opts.Reduce,
		name:   opts.ActionName,
		state:  Initial[S](opts.Key),

		effects: perkey.New[string](perkey.WithBufferSize(effectBuffer)),
		metrics: opts.Actor.Metrics,
	}
}

// CurrentState loads the state on first access and returns a copy.
func (s *StateActor[S, A]) CurrentState(ctx context.Context) (S, error) {
	return actor.Ask(ctx, s.a, "currentState", func(hc actor.HandlerCtx) (S, error) {
		st, err := s.ensureLoaded(hc)
		if err != nil {
			return st, err
		}
		return st.Clone(), nil
	})
}

// Subscribe arms the subscription for the next transition.
func (s *StateActor[S, A]) Subscribe() *future.Promise[S] {
	return s.updates.Subscribe()
}

// Updates waits for the next transition and returns the state it
// produced. Calling it again waits for the one after.
func (s *StateActor[S, A]) Updates(ctx context.Context) (S, error) {
	return s.Subscribe().Wait(ctx)
}

// Subscribed reports whether someone waits for the next transition.
func (s *StateActor[S, A]) Subscribed() bool { return s.updates.Pending() }

// Send applies action and every follow-up it yields, then publishes the
// final state.
func (s *StateActor[S, A]) Send(ctx context.Context, action A) (S, error) {
	return actor.Ask(ctx, s.a, s.name(action), func(hc actor.HandlerCtx) (S, error) {
		return s.apply(hc, action)
	})
}

// Stop ends the mailbox and waits until every committed effect ran.
func (s *StateActor[S, A]) Stop() {
	s.a.Stop()
	s.effects.Close()
}

func (s *StateActor[S, A]) ensureLoaded(ctx context.Context) (S, error) {
	if v, ok := s.state.Value(); ok {
		return v, nil
	}
	v, err := s.load(ctx, s.state.Key())
	if err != nil {
		var zero S
		s.log.Error("failed to load state", slog.Any("error", err))
		return zero, fmt.Errorf("%w: %s: %w", ErrCannotLoad, s.state.Key(), err)
	}
	s.state = Loaded(v)
	return v, nil
}

func (s *StateActor[S, A]) apply(hc actor.HandlerCtx, action A) (S, error) {
	st, err := s.ensureLoaded(hc)
	if err != nil {
		return st, err
	}

	var thenErr error
	queue := []A{action}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		step := s.reduce(&st, next)
		s.state = Loaded(st)

		if step.Effect != nil {
			s.spawn(hc, s.name(next), step.Effect)
		}
		if step.Then != nil {
			if err := step.Then(hc); err != nil {
				s.log.Warn("action failed after commit", slog.String("action", s.name(next)), slog.Any("error", err))
				if thenErr == nil {
					thenErr = err
				}
			}
		}
		if step.Next != nil {
			queue = append(queue, *step.Next)
		}
	}

	s.updates.Resolve(st.Clone())
	return st.Clone(), thenErr
}

// spawn queues effect behind the effects of earlier transitions. Effects
// outlive the mailbox so Stop does not drop committed writes.
func (s *StateActor[S, A]) spawn(hc actor.HandlerCtx, name string, effect func(ctx context.Context) error) {
	ctx := context.WithoutCancel(hc)
	_, err := s.effects.Submit(hc, s.state.Key(), func() (err error) {
		defer s.metrics.SchedulerTaskDuration().ObserveDuration()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("effect panicked: %v", r)
			}
			if err != nil {
				s.log.Warn("effect failed", slog.String("action", name), slog.Any("error", err))
			}
			s.metrics.SchedulerTaskCompleted(err == nil)
		}()
		return effect(ctx)
	})
	if err != nil {
		s.log.Warn("effect dropped", slog.String("action", name), slog.Any("error", err))
	}
}
