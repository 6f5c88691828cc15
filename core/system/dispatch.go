package system

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/codewandler/wsactor/core/transport"
	"github.com/codewandler/wsactor/core/wire"
	"github.com/codewandler/wsactor/internal/codec"
)

// HandleEnvelope routes one inbound envelope. It never blocks the read
// loop: calls are executed on their own goroutine.
func (s *System) HandleEnvelope(ctx context.Context, c transport.Conn, env wire.Envelope) {
	switch env.Kind() {
	case wire.KindCall:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			s.deadLetter(*env.Call, "closed")
			return
		}
		s.inflight.Add(1)
		s.mu.Unlock()

		call := *env.Call
		go func() {
			defer s.inflight.Done()
			// ends with the connection or with the system
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(s.ctx, cancel)
			defer stop()
			s.handleCall(ctx, c, call)
		}()

	case wire.KindReply:
		s.calls.deliver(*env.Reply)

	case wire.KindConnectionClose:
		// the connection tears itself down before handing envelopes on
		s.log.Debug("ignoring connection close", slog.String("remote", c.RemoteAddr()))

	default:
		s.log.Warn("dropping invalid envelope", slog.String("envelope", env.String()))
	}
}

func (s *System) handleCall(ctx context.Context, c transport.Conn, call wire.CallEnvelope) {
	log := s.log.With(
		slog.String("call_id", call.CallID),
		slog.String("recipient", call.Recipient.String()),
		slog.String("target", call.InvocationTarget),
	)

	a, ok := s.ResolveAny(call.Recipient)
	if !ok {
		s.deadLetter(call, "unresolved")
		return
	}

	timer := s.metrics.InboundDuration(call.InvocationTarget)
	value, err := s.invoke(ctx, a, call)
	timer.ObserveDuration()
	s.metrics.InboundCompleted(call.InvocationTarget, err == nil)

	sender := call.Recipient
	reply := wire.ReplyEnvelope{CallID: call.CallID, Sender: &sender, Value: []byte{}}
	if err != nil {
		// the error text stays on this side of the wire
		log.Warn("call failed", slog.Any("error", err))
		reply.Error = wire.ErrorRemoteFailure
	} else if value != nil {
		reply.Value = value
	}

	if err := c.Send(ctx, wire.NewReply(reply)); err != nil {
		log.Warn("failed to send reply", slog.Any("error", err))
	}
}

func (s *System) invoke(ctx context.Context, a Actor, call wire.CallEnvelope) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("invocation target panicked",
				slog.String("target", call.InvocationTarget),
				slog.Any("recovered", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	recv, ok := a.(Receiver)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotReceiver, a)
	}
	fn, ok := recv.Targets()[call.InvocationTarget]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %T", ErrNoTarget, call.InvocationTarget, a)
	}

	res, err := fn(ctx, wire.NewInvocationDecoder(call, s.types))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return codec.Default.Marshal(res)
}

// deadLetter drops a call nobody can take. No reply is sent.
func (s *System) deadLetter(call wire.CallEnvelope, reason string) {
	s.log.Warn("dead letter",
		slog.String("reason", reason),
		slog.String("call_id", call.CallID),
		slog.String("recipient", call.Recipient.String()),
		slog.String("target", call.InvocationTarget),
	)
	s.metrics.DeadLetter(reason)
}
