// Package transport carries envelopes over a single websocket connection.
//
// Both roles share the same pipeline: the client upgrades one outbound HTTP
// connection ([Dial]); the server ([Server]) answers plain HTTP with a tiny
// page and upgrades every websocket request it sees. After the upgrade each
// text frame holds exactly one JSON encoded [wire.Envelope].
//
// There is no reconnect, heartbeat or keep-alive. Once a connection is gone
// it is gone for good and the [Handler] is told so.
package transport

import (
	"context"

	"github.com/codewandler/wsactor/core/wire"
)

// Conn is one established, upgraded connection.
type Conn interface {
	// Send writes a single envelope. Sending a ConnectionClose envelope
	// closes the connection.
	Send(ctx context.Context, env wire.Envelope) error
	Close() error
	// Done is closed once the connection has been torn down.
	Done() <-chan struct{}
	RemoteAddr() string
}

// Handler receives the traffic of every connection. HandleEnvelope is called
// from the connection's read loop and must not block.
type Handler interface {
	ConnectionOpened(c Conn)
	HandleEnvelope(ctx context.Context, c Conn, env wire.Envelope)
	ConnectionClosed(c Conn, err error)
}
