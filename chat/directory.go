package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codewandler/wsactor/core/actor"
	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/system"
	"github.com/codewandler/wsactor/ports/store"
)

type DirectoryOptions struct {
	Store store.Store
	Log   *slog.Logger
	Now   func() time.Time
	// ActorMetrics is passed to every room and user mailbox.
	ActorMetrics actor.ActorMetrics
}

// Directory hosts the rooms and users of a server. Actors are keyed by
// name so identities that differ only in the host spelling of the
// endpoint reach the same instance.
type Directory struct {
	sys  *system.System
	opts DirectoryOptions
	log  *slog.Logger

	mu    sync.Mutex
	rooms map[string]*RoomActor
	users map[string]*UserActor
}

// RegisterFactories installs the on-demand resolver for the Room and User
// type tags on sys.
func RegisterFactories(sys *system.System, opts DirectoryOptions) *Directory {
	if opts.Log == nil {
		opts.Log = sys.Log()
	}
	d := &Directory{
		sys:   sys,
		opts:  opts,
		log:   opts.Log.With(slog.String("component", "chat")),
		rooms: make(map[string]*RoomActor),
		users: make(map[string]*UserActor),
	}
	sys.RegisterOnDemand(d.onDemand)
	return d
}

func (d *Directory) onDemand(id identity.ID) (system.Actor, error) {
	switch id.TypeTag() {
	case TypeRoom:
		return d.room(id.LocalID()), nil
	case TypeUser:
		return d.user(id.LocalID()), nil
	}
	return nil, nil
}

func (d *Directory) actorOptions() actor.Options {
	return actor.Options{
		Context: d.sys.Context(),
		Metrics: d.opts.ActorMetrics,
	}
}

func (d *Directory) room(name string) *RoomActor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rooms[name]; ok {
		return r
	}
	r := NewRoomActor(d.sys.ActorID(TypeRoom, name), RoomOptions{
		Store: d.opts.Store,
		Peers: d,
		Log:   d.log,
		Now:   d.opts.Now,
		Actor: d.actorOptions(),
	})
	d.rooms[name] = r
	d.log.Debug("room created", slog.String("room", name))
	return r
}

func (d *Directory) user(name string) *UserActor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[name]; ok {
		return u
	}
	u := NewUserActor(d.sys.ActorID(TypeUser, name), UserOptions{
		Store: d.opts.Store,
		Rooms: d,
		Log:   d.log,
		Actor: d.actorOptions(),
	})
	d.users[name] = u
	d.log.Debug("user created", slog.String("user", name))
	return u
}

// Room resolves a room through the runtime.
func (d *Directory) Room(name string) (Room, error) { return ResolveRoom(d.sys, name) }

// User resolves a user through the runtime.
func (d *Directory) User(name string) (User, error) { return ResolveUser(d.sys, name) }

// LocalRoom returns the hosted room instance, if any.
func (d *Directory) LocalRoom(name string) (*RoomActor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[name]
	return r, ok
}

func (d *Directory) LocalUser(name string) (*UserActor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[name]
	return u, ok
}

// CloseRoom stops a room whose guests are all offline and resigns its
// identity; the next call for the room loads it again. It fails with
// ErrRoomNotEmpty otherwise.
func (d *Directory) CloseRoom(ctx context.Context, name string) error {
	r, ok := d.LocalRoom(name)
	if !ok {
		return nil
	}
	if err := r.Close(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	if d.rooms[name] == r {
		delete(d.rooms, name)
	}
	d.mu.Unlock()
	d.sys.Resign(r.ID())
	return nil
}

// Disconnect stops a user actor and resigns its identity.
func (d *Directory) Disconnect(name string) {
	d.mu.Lock()
	u, ok := d.users[name]
	delete(d.users, name)
	d.mu.Unlock()
	if !ok {
		return
	}
	u.Stop()
	d.sys.Resign(u.ID())
	d.log.Debug("user disconnected", slog.String("user", name))
}

// Close stops every hosted actor.
func (d *Directory) Close() {
	d.mu.Lock()
	rooms, users := d.rooms, d.users
	d.rooms = make(map[string]*RoomActor)
	d.users = make(map[string]*UserActor)
	d.mu.Unlock()

	for _, u := range users {
		u.Stop()
		d.sys.Resign(u.ID())
	}
	for _, r := range rooms {
		r.Stop()
		d.sys.Resign(r.ID())
	}
}
