package system

import (
	"log/slog"
	"sync"

	"github.com/codewandler/wsactor/core/wire"
)

type callResult struct {
	value []byte
	err   error
}

// correlator matches replies to outstanding calls by call id. It has its
// own lock, independent of the registry.
type correlator struct {
	log     *slog.Logger
	metrics Metrics

	mu      sync.Mutex
	pending map[string]chan callResult
}

func newCorrelator(log *slog.Logger, m Metrics) *correlator {
	return &correlator{
		log:     log,
		metrics: m,
		pending: make(map[string]chan callResult),
	}
}

func (c *correlator) register(callID string) <-chan callResult {
	ch := make(chan callResult, 1)
	c.mu.Lock()
	c.pending[callID] = ch
	n := len(c.pending)
	c.mu.Unlock()
	c.metrics.PendingCalls(n)
	return ch
}

// forget drops a pending call whose caller gave up.
func (c *correlator) forget(callID string) {
	c.mu.Lock()
	delete(c.pending, callID)
	n := len(c.pending)
	c.mu.Unlock()
	c.metrics.PendingCalls(n)
}

// deliver resolves the caller waiting for r.CallID exactly once. Replies
// nobody waits for are logged and dropped.
func (c *correlator) deliver(r wire.ReplyEnvelope) bool {
	c.mu.Lock()
	ch, ok := c.pending[r.CallID]
	delete(c.pending, r.CallID)
	n := len(c.pending)
	c.mu.Unlock()

	if !ok {
		c.log.Warn("reply for unknown call", slog.String("call_id", r.CallID))
		c.metrics.UnmatchedReply()
		return false
	}
	c.metrics.PendingCalls(n)

	if r.Failed() {
		ch <- callResult{err: ErrRemoteFailure}
	} else {
		ch <- callResult{value: r.Value}
	}
	return true
}

// failAll fails every outstanding call, e.g. after the connection dropped.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan callResult)
	c.mu.Unlock()

	if len(pending) > 0 {
		c.log.Warn("failing pending calls", slog.Int("count", len(pending)), slog.Any("error", err))
	}
	for _, ch := range pending {
		ch <- callResult{err: err}
	}
	c.metrics.PendingCalls(0)
}

func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
