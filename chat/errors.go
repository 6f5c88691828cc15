package chat

import "errors"

var (
	ErrRoomNotEmpty  = errors.New("room is not empty")
	ErrNotInRoom     = errors.New("user is not in a room")
	ErrUnknownAction = errors.New("unknown action")
)
