package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/coder/websocket"

	"github.com/codewandler/wsactor/core/wire"
)

const defaultReadLimit = 1 << 20

type WSConn struct {
	ws     *websocket.Conn
	log    *slog.Logger
	h      Handler
	remote string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	closing  bool
	closeErr error
}

func newConn(base context.Context, ws *websocket.Conn, remote string, h Handler, log *slog.Logger, readLimit int64) *WSConn {
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	ws.SetReadLimit(readLimit)
	ctx, cancel := context.WithCancel(base)
	return &WSConn{
		ws:     ws,
		log:    log.With(slog.String("remote", remote)),
		h:      h,
		remote: remote,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (c *WSConn) RemoteAddr() string    { return c.remote }
func (c *WSConn) Done() <-chan struct{} { return c.done }

// Err is the reason the connection went away, nil while it is alive or
// after a normal close.
func (c *WSConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *WSConn) Send(ctx context.Context, env wire.Envelope) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	if env.Kind() == wire.KindConnectionClose {
		return c.closeWith(websocket.StatusProtocolError, "connection close")
	}

	data, err := wire.Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	c.log.Debug("write", slog.String("envelope", env.String()))
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}
	return nil
}

// Close performs a normal close handshake and waits for the read loop to end.
func (c *WSConn) Close() error {
	err := c.closeWith(websocket.StatusNormalClosure, "")
	<-c.done
	return err
}

func (c *WSConn) closeWith(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	c.log.Debug("closing", slog.Int("code", int(code)))
	err := c.ws.Close(code, reason)
	if err != nil && !isExpectedClose(err) {
		c.ws.CloseNow()
		return err
	}
	return nil
}

// readLoop runs until the socket fails or a close frame arrives. The
// library answers an unsolicited close frame before Read returns.
func (c *WSConn) readLoop() {
	var loopErr error
	defer func() { c.teardown(loopErr) }()

	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if !isExpectedClose(err) {
				loopErr = err
			}
			return
		}

		if typ != websocket.MessageText {
			c.log.Debug("ignoring non-text frame", slog.String("type", typ.String()))
			continue
		}

		env, err := wire.Decode(data)
		if err != nil {
			c.log.Error("failed to decode envelope", slog.Any("error", err))
			continue
		}

		c.log.Debug("read", slog.String("envelope", env.String()))

		if env.Kind() == wire.KindConnectionClose {
			_ = c.closeWith(websocket.StatusNormalClosure, "")
			return
		}

		c.h.HandleEnvelope(c.ctx, c, env)
	}
}

func (c *WSConn) teardown(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.closing = true
	c.mu.Unlock()

	c.cancel()
	c.ws.CloseNow()
	close(c.done)

	if err != nil {
		c.log.Warn("connection lost", slog.Any("error", err))
	} else {
		c.log.Debug("connection closed")
	}
	c.h.ConnectionClosed(c, err)
}

func isExpectedClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusProtocolError:
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}

var _ Conn = (*WSConn)(nil)
