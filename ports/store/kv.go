package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/codewandler/wsactor/core/perkey"
	"github.com/codewandler/wsactor/ports/kv"
)

// KVStore keeps each room and user as one JSON document in a kv.Store.
// Updates of one document are serialized, documents are independent.
type KVStore struct {
	kv    kv.Store
	sched *perkey.Scheduler[string]
}

func NewKVStore(s kv.Store) *KVStore {
	return &KVStore{kv: s, sched: perkey.New[string]()}
}

// NewMemStore is a KVStore kept in memory.
func NewMemStore() *KVStore { return NewKVStore(kv.NewMemStore()) }

func roomKey(name string) string { return "room." + name }
func userKey(name string) string { return "user." + name }

func (s *KVStore) GetRoom(ctx context.Context, name string) (Room, error) {
	r, err := kv.Get[Room](ctx, s.kv, roomKey(name))
	if err != nil {
		return Room{}, mapKVError(err, "room "+name)
	}
	return r.Clone(), nil
}

func (s *KVStore) CreateRoom(ctx context.Context, room Room) error {
	return s.create(ctx, roomKey(room.Name), room.Clone())
}

func (s *KVStore) AddGuest(ctx context.Context, room, user string) error {
	return s.updateRoom(ctx, room, func(r *Room) {
		if !slices.Contains(r.Guests, user) {
			r.Guests = append(r.Guests, user)
		}
		if _, ok := r.Statuses[user]; !ok {
			r.Statuses[user] = StatusOnline
		}
	})
}

func (s *KVStore) AppendMessage(ctx context.Context, room, user string, msg Message) error {
	return s.updateRoom(ctx, room, func(r *Room) {
		r.Messages[user] = append(r.Messages[user], msg)
	})
}

func (s *KVStore) UpdateStatus(ctx context.Context, room, user string, status Status) error {
	return s.updateRoom(ctx, room, func(r *Room) {
		r.Statuses[user] = status
	})
}

func (s *KVStore) GetUser(ctx context.Context, name string) (User, error) {
	u, err := kv.Get[User](ctx, s.kv, userKey(name))
	if err != nil {
		return User{}, mapKVError(err, "user "+name)
	}
	return u, nil
}

func (s *KVStore) CreateUser(ctx context.Context, user User) error {
	return s.create(ctx, userKey(user.Name), user)
}

func (s *KVStore) SetRoom(ctx context.Context, user, room string) error {
	key := userKey(user)
	return s.sched.DoContext(ctx, key, func() error {
		err := kv.Update(ctx, s.kv, key, func(u *User) error {
			u.Room = room
			return nil
		})
		return mapKVError(err, "user "+user)
	})
}

func (s *KVStore) Close() error {
	s.sched.Close()
	return nil
}

func (s *KVStore) create(ctx context.Context, key string, v any) error {
	return s.sched.DoContext(ctx, key, func() error {
		_, err := s.kv.Get(ctx, key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
		case !errors.Is(err, kv.ErrNotFound):
			return err
		}
		return kv.Put(ctx, s.kv, key, v, kv.PutOptions{})
	})
}

func (s *KVStore) updateRoom(ctx context.Context, name string, fn func(r *Room)) error {
	key := roomKey(name)
	return s.sched.DoContext(ctx, key, func() error {
		err := kv.Update(ctx, s.kv, key, func(r *Room) error {
			*r = r.Clone()
			fn(r)
			return nil
		})
		return mapKVError(err, "room "+name)
	})
}

func mapKVError(err error, what string) error {
	if errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

var _ Store = (*KVStore)(nil)
