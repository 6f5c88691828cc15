// Package store is the persistence contract of the chat actors. Rooms
// and users are loaded once, when their actor first needs state, and
// written through afterwards.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Status of a guest in a room. The integer codes are part of the JSON
// form and of the database schema.
type Status int

const (
	StatusTexting Status = 0
	StatusOnline  Status = 1
	StatusOffline Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusTexting:
		return "texting"
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "texting":
		return StatusTexting, nil
	case "online":
		return StatusOnline, nil
	case "offline":
		return StatusOffline, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

type Message struct {
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text"`
}

type Room struct {
	Name     string               `json:"name"`
	Guests   []string             `json:"guests"`
	Messages map[string][]Message `json:"messages"`
	Statuses map[string]Status    `json:"statuses"`
}

func NewRoom(name string) Room {
	return Room{
		Name:     name,
		Guests:   []string{},
		Messages: map[string][]Message{},
		Statuses: map[string]Status{},
	}
}

func (r Room) Clone() Room {
	out := Room{
		Name:     r.Name,
		Guests:   slices.Clone(r.Guests),
		Messages: make(map[string][]Message, len(r.Messages)),
		Statuses: maps.Clone(r.Statuses),
	}
	for u, ms := range r.Messages {
		out.Messages[u] = slices.Clone(ms)
	}
	if out.Guests == nil {
		out.Guests = []string{}
	}
	if out.Statuses == nil {
		out.Statuses = map[string]Status{}
	}
	return out
}

type User struct {
	Name string `json:"name"`
	// Room is the room the user is in, empty if none.
	Room string `json:"room,omitempty"`
}

type RoomStore interface {
	// GetRoom fails with ErrNotFound for unknown rooms.
	GetRoom(ctx context.Context, name string) (Room, error)
	// CreateRoom fails with ErrAlreadyExists if the room exists.
	CreateRoom(ctx context.Context, room Room) error
	AddGuest(ctx context.Context, room, user string) error
	AppendMessage(ctx context.Context, room, user string, msg Message) error
	UpdateStatus(ctx context.Context, room, user string, status Status) error
}

type UserStore interface {
	GetUser(ctx context.Context, name string) (User, error)
	CreateUser(ctx context.Context, user User) error
	SetRoom(ctx context.Context, user, room string) error
}

type Store interface {
	RoomStore
	UserStore
	Close() error
}
