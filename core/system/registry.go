package system

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/sf"
)

type (
	// Actor is anything the registry can hold.
	Actor interface {
		ID() identity.ID
	}

	// OnDemandFunc constructs the actor for an id the registry has not
	// seen. It receives the identity and passes it to the constructor.
	// Returning (nil, nil) means "not mine": the id stays unknown.
	OnDemandFunc func(id identity.ID) (Actor, error)

	registryOwner interface {
		Registry() *Registry
	}
)

// Registry maps identities to live local actors.
//
// Lookups take a read lock only. On-demand construction runs outside of
// any lock, deduplicated per id, and the result is installed with
// create-if-absent so a concurrent constructor never overwrites a winner.
type Registry struct {
	log     *slog.Logger
	metrics Metrics
	newID   func() identity.ID

	mu       sync.RWMutex
	actors   map[identity.ID]Actor
	onDemand OnDemandFunc

	flight *sf.Singleflight[Actor]
}

func NewRegistry(log *slog.Logger, m Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = NopMetrics()
	}
	return &Registry{
		log:     log.With(slog.String("component", "registry")),
		metrics: m,
		newID:   identity.Random,
		actors:  make(map[identity.ID]Actor),
		flight:  sf.New[Actor](),
	}
}

func (r *Registry) Registry() *Registry { return r }

// NewID mints a fresh random id that is not registered.
func (r *Registry) NewID() identity.ID {
	for {
		id := r.newID()
		if _, ok := r.lookup(id); !ok {
			return id
		}
	}
}

// ClaimID hands out a hinted id. Claiming an id that is already
// registered panics: identities are never reused for another instance.
func (r *Registry) ClaimID(hint identity.ID) identity.ID {
	if hint.IsZero() {
		return r.NewID()
	}
	if existing, ok := r.lookup(hint); ok {
		panic(fmt.Sprintf("system: identity %s already assigned to %T", hint, existing))
	}
	return hint
}

// Ready installs a. Installing the same instance twice is a no-op; a
// different instance under an id in use panics.
func (r *Registry) Ready(a Actor) {
	got, installed := r.installIfAbsent(a)
	if !installed && got != a {
		panic(fmt.Sprintf("system: identity %s already assigned to %T", a.ID(), got))
	}
}

// Resign removes id. Unknown ids are ignored.
func (r *Registry) Resign(id identity.ID) {
	r.mu.Lock()
	_, ok := r.actors[id]
	delete(r.actors, id)
	n := len(r.actors)
	r.mu.Unlock()

	if ok {
		r.log.Debug("resigned", slog.String("id", id.String()))
		r.metrics.ActorsReady(n)
	}
}

func (r *Registry) RegisterOnDemand(fn OnDemandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDemand = fn
}

// Len is the number of registered actors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

func (r *Registry) lookup(id identity.ID) (Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[id]
	return a, ok
}

func (r *Registry) installIfAbsent(a Actor) (Actor, bool) {
	id := a.ID()
	r.mu.Lock()
	if existing, ok := r.actors[id]; ok {
		r.mu.Unlock()
		return existing, false
	}
	r.actors[id] = a
	n := len(r.actors)
	r.mu.Unlock()

	r.log.Debug("ready", slog.String("id", id.String()), slog.String("type", fmt.Sprintf("%T", a)))
	r.metrics.ActorsReady(n)
	return a, true
}

// resolve runs the two-phase lookup: a plain read, then the on-demand
// factory outside of the lock.
func (r *Registry) resolve(id identity.ID) (a Actor, ok bool, fromFactory bool, err error) {
	if a, ok := r.lookup(id); ok {
		return a, true, false, nil
	}

	r.mu.RLock()
	fn := r.onDemand
	r.mu.RUnlock()
	if fn == nil {
		return nil, false, false, nil
	}

	a, _, err = r.flight.Do(id.String(), func() (Actor, error) {
		// a concurrent flight may have finished in between
		if a, ok := r.lookup(id); ok {
			return a, nil
		}
		a, err := fn(id)
		if err != nil || a == nil {
			return nil, err
		}
		r.metrics.OnDemandCreated(id.TypeTag())
		return a, nil
	})
	if err != nil {
		return nil, false, true, err
	}
	if a == nil {
		return nil, false, true, nil
	}
	return a, true, true, nil
}

// Resolve returns the local actor for id as T.
//
// ok is false when the id is not known locally and no on-demand factory
// produced it: the caller has to treat it as remote. That is never an
// error. A registered actor of another type fails with ErrTypeMismatch, a
// factory that produced the wrong type or failed with ErrResolveFailed.
func Resolve[T any](o registryOwner, id identity.ID) (T, bool, error) {
	var zero T
	r := o.Registry()

	a, ok, fromFactory, err := r.resolve(id)
	if err != nil {
		return zero, false, &ResolveError{ID: id, Expected: typeName[T](), Found: "error", Err: fmt.Errorf("%w: %w", ErrResolveFailed, err)}
	}
	if !ok {
		return zero, false, nil
	}

	t, isT := a.(T)
	if !isT {
		sentinel := ErrTypeMismatch
		if fromFactory {
			sentinel = ErrResolveFailed
		}
		return zero, false, &ResolveError{ID: id, Expected: typeName[T](), Found: fmt.Sprintf("%T", a), Err: sentinel}
	}

	if fromFactory {
		// constructors normally call Ready themselves
		if got, _ := r.installIfAbsent(a); got != a {
			if t, isT = got.(T); !isT {
				return zero, false, &ResolveError{ID: id, Expected: typeName[T](), Found: fmt.Sprintf("%T", got), Err: ErrTypeMismatch}
			}
		}
	}
	return t, true, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
