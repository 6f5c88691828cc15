package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewandler/wsactor/core/actor"
	"github.com/codewandler/wsactor/core/ds"
	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/reducer"
	"github.com/codewandler/wsactor/core/system"
	"github.com/codewandler/wsactor/ports/store"
)

const (
	TypeRoom = "Room"
	TypeUser = "User"

	targetCurrentState = "currentState"
	targetUpdates      = "updates"
	targetSend         = "send"
)

type RoomState = store.Room

// Room is a chat room, local or remote.
type Room interface {
	ID() identity.ID
	CurrentState(ctx context.Context) (RoomState, error)
	// Updates waits for the next change of the room.
	Updates(ctx context.Context) (RoomState, error)
	Send(ctx context.Context, action RoomAction) (RoomState, error)
}

// Peers resolves the users a room notifies.
type Peers interface {
	User(name string) (User, error)
}

type RoomOptions struct {
	Store store.RoomStore
	Peers Peers
	Log   *slog.Logger
	Now   func() time.Time
	Actor actor.Options
}

type RoomActor struct {
	id    identity.ID
	state *reducer.StateActor[RoomState, RoomAction]
	log   *slog.Logger
}

func NewRoomActor(id identity.ID, opts RoomOptions) *RoomActor {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	name := id.LocalID()
	log := opts.Log.With(slog.String("room", name))
	r := &RoomActor{id: id, log: log}

	actorOpts := opts.Actor
	actorOpts.ID = id.String()
	r.state = reducer.New(reducer.Options[RoomState, RoomAction]{
		Key:        name,
		Load:       loadRoom(opts.Store),
		Reduce:     reduceRoom(opts.Store, opts.Peers, opts.Now, log),
		Log:        log,
		ActionName: func(a RoomAction) string { return "room." + string(a.Kind) },
		Actor:      actorOpts,
	})
	return r
}

func (r *RoomActor) ID() identity.ID { return r.id }

func (r *RoomActor) Name() string { return r.id.LocalID() }

func (r *RoomActor) CurrentState(ctx context.Context) (RoomState, error) {
	return r.state.CurrentState(ctx)
}

func (r *RoomActor) Updates(ctx context.Context) (RoomState, error) {
	return r.state.Updates(ctx)
}

// Subscribed reports whether a caller waits in Updates.
func (r *RoomActor) Subscribed() bool { return r.state.Subscribed() }

func (r *RoomActor) Send(ctx context.Context, action RoomAction) (RoomState, error) {
	return r.state.Send(ctx, action)
}

// Close fails with ErrRoomNotEmpty while a guest is not offline. On
// success the actor is stopped.
func (r *RoomActor) Close(ctx context.Context) error {
	st, err := r.state.CurrentState(ctx)
	if err != nil {
		return err
	}
	for _, guest := range st.Guests {
		if status, ok := st.Statuses[guest]; !ok || status != store.StatusOffline {
			return fmt.Errorf("%w: %s is %s", ErrRoomNotEmpty, guest, status)
		}
	}
	r.state.Stop()
	r.log.Debug("room closed")
	return nil
}

func (r *RoomActor) Stop() { r.state.Stop() }

func (r *RoomActor) Targets() system.Targets {
	return system.NewTargets(
		system.Target0(targetCurrentState, r.CurrentState),
		system.Target0(targetUpdates, r.Updates),
		system.Target1(targetSend, r.Send),
	)
}

var _ system.Receiver = (*RoomActor)(nil)
var _ Room = (*RoomActor)(nil)

func loadRoom(st store.RoomStore) reducer.Loader[RoomState] {
	return func(ctx context.Context, name string) (RoomState, error) {
		room, err := st.GetRoom(ctx, name)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return RoomState{}, err
		}
		room = store.NewRoom(name)
		if err := st.CreateRoom(ctx, room); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return st.GetRoom(ctx, name)
			}
			return RoomState{}, err
		}
		return room, nil
	}
}

func reduceRoom(st store.RoomStore, peers Peers, now func() time.Time, log *slog.Logger) reducer.Reducer[RoomState, RoomAction] {
	return func(state *RoomState, action RoomAction) reducer.Step[RoomAction] {
		room := state.Name
		switch action.Kind {
		case RoomConnect:
			if !slices.Contains(state.Guests, action.User) {
				state.Guests = append(state.Guests, action.User)
			}
			return reducer.Step[RoomAction]{
				Next: reducer.Next(SetStatus(store.StatusOnline, action.User)),
				Effect: func(ctx context.Context) error {
					return st.AddGuest(ctx, room, action.User)
				},
			}

		case RoomSend:
			msg := store.Message{CreatedAt: now(), Text: action.Text}
			state.Messages[action.From] = append(state.Messages[action.From], msg)
			guests := ds.NewSet(state.Guests...)
			return reducer.Step[RoomAction]{
				Effect: func(ctx context.Context) error {
					if err := st.AppendMessage(ctx, room, action.From, msg); err != nil {
						return err
					}
					broadcast(ctx, peers, guests, room, log)
					return nil
				},
			}

		case RoomUpdate:
			state.Statuses[action.From] = action.Status
			guests := ds.NewSet(state.Guests...)
			return reducer.Step[RoomAction]{
				Effect: func(ctx context.Context) error {
					if err := st.UpdateStatus(ctx, room, action.From, action.Status); err != nil {
						return err
					}
					broadcast(ctx, peers, guests, room, log)
					return nil
				},
			}

		case RoomDisconnect:
			state.Statuses[action.User] = store.StatusOffline
			return reducer.Step[RoomAction]{
				Effect: func(ctx context.Context) error {
					return st.UpdateStatus(ctx, room, action.User, store.StatusOffline)
				},
			}
		}

		return reducer.Step[RoomAction]{
			Then: func(context.Context) error {
				return fmt.Errorf("%w: room %q", ErrUnknownAction, action.Kind)
			},
		}
	}
}

// broadcast tells every guest that room changed. Failures are logged
// and otherwise ignored.
func broadcast(ctx context.Context, peers Peers, guests *ds.Set[string], room string, log *slog.Logger) {
	if peers == nil {
		return
	}
	var g errgroup.Group
	guests.ForEach(func(guest string) {
		g.Go(func() error {
			u, err := peers.User(guest)
			if err == nil {
				_, err = u.Send(ctx, RoomDidUpdate(room))
			}
			if err != nil {
				log.Debug("notify guest failed", slog.String("guest", guest), slog.Any("error", err))
			}
			return nil
		})
	})
	_ = g.Wait()
}

type roomStub struct {
	sys *system.System
	id  identity.ID
}

func (r *roomStub) ID() identity.ID { return r.id }

func (r *roomStub) CurrentState(ctx context.Context) (RoomState, error) {
	return system.Call[RoomState](ctx, r.sys, r.id, targetCurrentState)
}

func (r *roomStub) Updates(ctx context.Context) (RoomState, error) {
	return system.Call[RoomState](ctx, r.sys, r.id, targetUpdates)
}

func (r *roomStub) Send(ctx context.Context, action RoomAction) (RoomState, error) {
	return system.Call[RoomState](ctx, r.sys, r.id, targetSend, action)
}

// ResolveRoom returns the local room if this process hosts it, a stub
// for the remote one otherwise.
func ResolveRoom(sys *system.System, name string) (Room, error) {
	id := sys.ActorID(TypeRoom, name)
	r, ok, err := system.Resolve[*RoomActor](sys, id)
	if err != nil {
		return nil, err
	}
	if ok {
		return r, nil
	}
	return &roomStub{sys: sys, id: id}, nil
}
