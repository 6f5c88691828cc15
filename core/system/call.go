package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/wire"
	"github.com/codewandler/wsactor/internal/codec"
)

// RemoteCall sends a Call envelope for target on recipient and waits for
// its reply. There is no timeout: the wait ends with the reply, with the
// loss of the connection or with ctx.
func (s *System) RemoteCall(ctx context.Context, recipient identity.ID, target string, enc *wire.InvocationEncoder) ([]byte, error) {
	if s.mode == ModeServer {
		return nil, ErrServerInitiated
	}

	s.mu.Lock()
	peer, endpoint := s.peer, s.endpoint
	s.mu.Unlock()

	if !endpoint.Matches(recipient) {
		return nil, fmt.Errorf("%w: %s", ErrForeignIdentity, recipient)
	}
	if peer == nil {
		return nil, ErrNotConnected
	}

	if enc == nil {
		enc = wire.NewInvocationEncoder()
	}
	enc.DoneRecording()

	callID := uuid.NewString()
	env := wire.NewCall(enc.Envelope(callID, recipient, target))

	timer := s.metrics.CallDuration(target)
	defer timer.ObserveDuration()

	wait := s.calls.register(callID)
	if err := peer.Send(ctx, env); err != nil {
		s.calls.forget(callID)
		s.metrics.CallCompleted(target, false)
		return nil, fmt.Errorf("send call %s: %w", target, err)
	}

	s.log.Debug("call sent", slog.String("call_id", callID), slog.String("target", target), slog.String("recipient", recipient.String()))

	select {
	case res := <-wait:
		s.metrics.CallCompleted(target, res.err == nil)
		if res.err != nil {
			return nil, fmt.Errorf("call %s on %s: %w", target, recipient, res.err)
		}
		return res.value, nil
	case <-ctx.Done():
		s.calls.forget(callID)
		s.metrics.CallCompleted(target, false)
		return nil, ctx.Err()
	}
}

// RemoteCallVoid is RemoteCall for targets without a result.
func (s *System) RemoteCallVoid(ctx context.Context, recipient identity.ID, target string, enc *wire.InvocationEncoder) error {
	_, err := s.RemoteCall(ctx, recipient, target, enc)
	return err
}

func encodeArgs(args []any) (*wire.InvocationEncoder, error) {
	enc := wire.NewInvocationEncoder()
	for _, arg := range args {
		if err := enc.RecordArgument(arg); err != nil {
			return nil, err
		}
	}
	return enc, nil
}

// Call is the typed form of RemoteCall used by stubs.
func Call[T any](ctx context.Context, s *System, id identity.ID, target string, args ...any) (T, error) {
	var out T
	enc, err := encodeArgs(args)
	if err != nil {
		return out, err
	}
	data, err := s.RemoteCall(ctx, id, target, enc)
	if err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := codec.Default.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: reply of %s: %w", wire.ErrMalformedPayload, target, err)
	}
	return out, nil
}

// CallVoid is Call for targets without a result.
func CallVoid(ctx context.Context, s *System, id identity.ID, target string, args ...any) error {
	enc, err := encodeArgs(args)
	if err != nil {
		return err
	}
	return s.RemoteCallVoid(ctx, id, target, enc)
}
