package reducer

import (
	"context"
	"errors"
)

var (
	ErrCannotLoad = errors.New("cannot load actor state")
)

// Cloner hands out copies of a state so readers never alias the value the
// actor keeps mutating.
type Cloner[S any] interface {
	Clone() S
}

// ActorState is Initial(key) until the first successful load and Loaded
// from then on.
type ActorState[S any] struct {
	loaded bool
	key    string
	value  S
}

func Initial[S any](key string) ActorState[S] { return ActorState[S]{key: key} }

func Loaded[S any](v S) ActorState[S] { return ActorState[S]{loaded: true, value: v} }

func (s ActorState[S]) IsLoaded() bool { return s.loaded }

// Key is the load key; empty once loaded.
func (s ActorState[S]) Key() string { return s.key }

func (s ActorState[S]) Value() (S, bool) { return s.value, s.loaded }

type (
	// Step is the outcome of one reduction.
	Step[A any] struct {
		// Next is applied after this action, before the state is published.
		Next *A
		// Effect runs off the mailbox once the reduction is committed.
		// Effects of one actor run one at a time in commit order.
		Effect func(ctx context.Context) error
		// Then runs on the mailbox after the commit. Its error is returned
		// to the sender; the committed state is not rolled back.
		Then func(ctx context.Context) error
	}

	Reducer[S, A any] func(state *S, action A) Step[A]

	// Loader produces the initial value for key: load it, or create and
	// persist a default when it does not exist yet.
	Loader[S any] func(ctx context.Context, key string) (S, error)
)

// Next is a helper for Step.Next.
func Next[A any](a A) *A { return &a }
