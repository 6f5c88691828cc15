package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codewandler/wsactor/core/actor"
	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/reducer"
	"github.com/codewandler/wsactor/core/system"
	"github.com/codewandler/wsactor/ports/store"
)

type UserState struct {
	Name string `json:"name"`
	// Room the user has joined, empty if none.
	Room string `json:"room,omitempty"`
	// LastUpdate is the room of the latest roomDidUpdate.
	LastUpdate  string `json:"lastUpdate,omitempty"`
	RoomUpdates int    `json:"roomUpdates"`
}

func (s UserState) Clone() UserState { return s }

// User is a chat user, local or remote.
type User interface {
	ID() identity.ID
	CurrentState(ctx context.Context) (UserState, error)
	Updates(ctx context.Context) (UserState, error)
	Send(ctx context.Context, action UserAction) (UserState, error)
}

// Rooms resolves the room a user talks to.
type Rooms interface {
	Room(name string) (Room, error)
}

type UserOptions struct {
	Store store.UserStore
	Rooms Rooms
	Log   *slog.Logger
	Actor actor.Options
}

type UserActor struct {
	id    identity.ID
	state *reducer.StateActor[UserState, UserAction]
}

func NewUserActor(id identity.ID, opts UserOptions) *UserActor {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	name := id.LocalID()
	log := opts.Log.With(slog.String("user", name))

	actorOpts := opts.Actor
	actorOpts.ID = id.String()
	return &UserActor{
		id: id,
		state: reducer.New(reducer.Options[UserState, UserAction]{
			Key:        name,
			Load:       loadUser(opts.Store),
			Reduce:     reduceUser(opts.Store, opts.Rooms),
			Log:        log,
			ActionName: func(a UserAction) string { return "user." + string(a.Kind) },
			Actor:      actorOpts,
		}),
	}
}

func (u *UserActor) ID() identity.ID { return u.id }

func (u *UserActor) Name() string { return u.id.LocalID() }

func (u *UserActor) CurrentState(ctx context.Context) (UserState, error) {
	return u.state.CurrentState(ctx)
}

func (u *UserActor) Updates(ctx context.Context) (UserState, error) {
	return u.state.Updates(ctx)
}

func (u *UserActor) Subscribed() bool { return u.state.Subscribed() }

func (u *UserActor) Send(ctx context.Context, action UserAction) (UserState, error) {
	return u.state.Send(ctx, action)
}

func (u *UserActor) Stop() { u.state.Stop() }

func (u *UserActor) Targets() system.Targets {
	return system.NewTargets(
		system.Target0(targetCurrentState, u.CurrentState),
		system.Target0(targetUpdates, u.Updates),
		system.Target1(targetSend, u.Send),
	)
}

var _ system.Receiver = (*UserActor)(nil)
var _ User = (*UserActor)(nil)

func loadUser(st store.UserStore) reducer.Loader[UserState] {
	return func(ctx context.Context, name string) (UserState, error) {
		u, err := st.GetUser(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			u = store.User{Name: name}
			err = st.CreateUser(ctx, u)
			if errors.Is(err, store.ErrAlreadyExists) {
				u, err = st.GetUser(ctx, name)
			}
		}
		if err != nil {
			return UserState{}, err
		}
		return UserState{Name: u.Name, Room: u.Room}, nil
	}
}

func reduceUser(st store.UserStore, rooms Rooms) reducer.Reducer[UserState, UserAction] {
	return func(state *UserState, action UserAction) reducer.Step[UserAction] {
		user, room := state.Name, state.Room
		sendRoom := func(name string, a RoomAction) func(ctx context.Context) error {
			return func(ctx context.Context) error {
				r, err := rooms.Room(name)
				if err != nil {
					return err
				}
				_, err = r.Send(ctx, a)
				return err
			}
		}

		switch action.Kind {
		case UserJoin:
			state.Room = action.Room
			return reducer.Step[UserAction]{
				Effect: func(ctx context.Context) error { return st.SetRoom(ctx, user, action.Room) },
				Then:   sendRoom(action.Room, Connect(user)),
			}

		case UserExit:
			state.Room = ""
			step := reducer.Step[UserAction]{
				Next:   reducer.Next(Update(store.StatusOffline)),
				Effect: func(ctx context.Context) error { return st.SetRoom(ctx, user, "") },
			}
			if room != "" {
				step.Then = sendRoom(room, Disconnect(user))
			}
			return step

		case UserUpdate:
			if room == "" {
				return reducer.Step[UserAction]{}
			}
			return reducer.Step[UserAction]{Then: sendRoom(room, SetStatus(action.Status, user))}

		case UserSend:
			if room == "" {
				return reducer.Step[UserAction]{
					Then: func(context.Context) error { return fmt.Errorf("%w: %s", ErrNotInRoom, user) },
				}
			}
			return reducer.Step[UserAction]{Then: sendRoom(room, Say(action.Message, user))}

		case UserRoomDidUpdate:
			state.LastUpdate = action.Room
			state.RoomUpdates++
			return reducer.Step[UserAction]{}
		}

		return reducer.Step[UserAction]{
			Then: func(context.Context) error {
				return fmt.Errorf("%w: user %q", ErrUnknownAction, action.Kind)
			},
		}
	}
}

type userStub struct {
	sys *system.System
	id  identity.ID
}

func (u *userStub) ID() identity.ID { return u.id }

func (u *userStub) CurrentState(ctx context.Context) (UserState, error) {
	return system.Call[UserState](ctx, u.sys, u.id, targetCurrentState)
}

func (u *userStub) Updates(ctx context.Context) (UserState, error) {
	return system.Call[UserState](ctx, u.sys, u.id, targetUpdates)
}

func (u *userStub) Send(ctx context.Context, action UserAction) (UserState, error) {
	return system.Call[UserState](ctx, u.sys, u.id, targetSend, action)
}

func ResolveUser(sys *system.System, name string) (User, error) {
	id := sys.ActorID(TypeUser, name)
	u, ok, err := system.Resolve[*UserActor](sys, id)
	if err != nil {
		return nil, err
	}
	if ok {
		return u, nil
	}
	return &userStub{sys: sys, id: id}, nil
}
