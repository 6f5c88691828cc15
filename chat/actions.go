package chat

import (
	"github.com/codewandler/wsactor/ports/store"
)

type RoomActionKind string

const (
	RoomConnect    RoomActionKind = "connect"
	RoomSend       RoomActionKind = "send"
	RoomUpdate     RoomActionKind = "update"
	RoomDisconnect RoomActionKind = "disconnect"
)

// RoomAction is the message a room reduces. Fields not used by a kind
// stay empty.
type RoomAction struct {
	Kind RoomActionKind `json:"kind"`
	// User is the guest of connect and disconnect.
	User   string       `json:"user,omitempty"`
	Text   string       `json:"text,omitempty"`
	From   string       `json:"from,omitempty"`
	Status store.Status `json:"status,omitempty"`
}

func Connect(user string) RoomAction { return RoomAction{Kind: RoomConnect, User: user} }

func Disconnect(user string) RoomAction { return RoomAction{Kind: RoomDisconnect, User: user} }

func Say(text, from string) RoomAction {
	return RoomAction{Kind: RoomSend, Text: text, From: from}
}

func SetStatus(status store.Status, from string) RoomAction {
	return RoomAction{Kind: RoomUpdate, Status: status, From: from}
}

type UserActionKind string

const (
	UserJoin          UserActionKind = "join"
	UserExit          UserActionKind = "exit"
	UserSend          UserActionKind = "send"
	UserUpdate        UserActionKind = "update"
	UserRoomDidUpdate UserActionKind = "roomDidUpdate"
)

type UserAction struct {
	Kind    UserActionKind `json:"kind"`
	Room    string         `json:"room,omitempty"`
	Message string         `json:"message,omitempty"`
	Status  store.Status   `json:"status,omitempty"`
}

func Join(room string) UserAction { return UserAction{Kind: UserJoin, Room: room} }

func Exit() UserAction { return UserAction{Kind: UserExit} }

func Send(message string) UserAction { return UserAction{Kind: UserSend, Message: message} }

func Update(status store.Status) UserAction { return UserAction{Kind: UserUpdate, Status: status} }

func RoomDidUpdate(room string) UserAction {
	return UserAction{Kind: UserRoomDidUpdate, Room: room}
}
