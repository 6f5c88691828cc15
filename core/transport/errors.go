package transport

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrNoHandler        = errors.New("transport: handler is required")
	ErrServerClosed     = errors.New("transport: server closed")
	ErrNotListening     = errors.New("transport: server is not listening")
)
