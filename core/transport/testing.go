package transport

import (
	"context"
	"sync"

	"github.com/codewandler/wsactor/core/wire"
)

// RecordingHandler collects everything a connection delivers. Handy in tests.
type RecordingHandler struct {
	mu       sync.Mutex
	opened   []Conn
	closed   []error
	received chan wire.Envelope
	onEnv    func(ctx context.Context, c Conn, env wire.Envelope)
}

func NewRecordingHandler(onEnv func(ctx context.Context, c Conn, env wire.Envelope)) *RecordingHandler {
	return &RecordingHandler{received: make(chan wire.Envelope, 128), onEnv: onEnv}
}

func (h *RecordingHandler) ConnectionOpened(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, c)
}

func (h *RecordingHandler) HandleEnvelope(ctx context.Context, c Conn, env wire.Envelope) {
	if h.onEnv != nil {
		h.onEnv(ctx, c, env)
	}
	h.received <- env
}

func (h *RecordingHandler) ConnectionClosed(_ Conn, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, err)
}

func (h *RecordingHandler) Received() <-chan wire.Envelope { return h.received }

func (h *RecordingHandler) Opened() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.opened)
}

func (h *RecordingHandler) Closed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.closed)
}
