package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/codewandler/wsactor/core/identity"
)

type DialOptions struct {
	Endpoint   identity.Endpoint
	Path       string // defaults to "/"
	Handler    Handler
	Log        *slog.Logger
	HTTPHeader http.Header
	ReadLimit  int64
	// Context bounds the lifetime of the connection, not just the
	// handshake. Defaults to context.Background().
	Context context.Context
}

// Dial opens the single outbound connection of a client process: an HTTP
// GET that is upgraded to a websocket, after which the envelope pipeline
// takes over.
func Dial(ctx context.Context, opts DialOptions) (*WSConn, error) {
	if opts.Handler == nil {
		return nil, ErrNoHandler
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	path := opts.Path
	if path == "" {
		path = "/"
	}
	base := opts.Context
	if base == nil {
		base = context.Background()
	}

	url := fmt.Sprintf("%s://%s%s", opts.Endpoint.Protocol, opts.Endpoint.Address(), path)
	log = log.With(slog.String("transport", "ws"), slog.String("role", "client"))
	log.Debug("dialing", slog.String("url", url))

	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: opts.HTTPHeader})
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}

	c := newConn(base, ws, opts.Endpoint.Address(), opts.Handler, log, opts.ReadLimit)
	opts.Handler.ConnectionOpened(c)
	go c.readLoop()

	log.Info("connected", slog.String("url", url))
	return c, nil
}
