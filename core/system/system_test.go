package system

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/transport"
	"github.com/codewandler/wsactor/core/wire"
)

type greeting struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type echoActor struct {
	id      identity.ID
	targets Targets

	mu   sync.Mutex
	seen []string
}

func newEchoActor(sys *System, id identity.ID) *echoActor {
	a := &echoActor{id: sys.ClaimID(id)}
	a.targets = NewTargets(
		Target0("ping", func(context.Context) (string, error) { return "pong", nil }),
		Target1("upper", func(_ context.Context, s string) (string, error) { return strings.ToUpper(s), nil }),
		Target1("greet", func(_ context.Context, g greeting) (greeting, error) {
			g.Count++
			return g, nil
		}),
		Target1Void("remember", func(_ context.Context, s string) error {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.seen = append(a.seen, s)
			return nil
		}),
		Target0Void("fail", func(context.Context) error { return errors.New("secret internal detail") }),
		Target0Void("panic", func(context.Context) error { panic("boom") }),
	)
	sys.Ready(a)
	return a
}

func (a *echoActor) ID() identity.ID  { return a.id }
func (a *echoActor) Targets() Targets { return a.targets }

func (a *echoActor) remembered() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.seen...)
}

func setupEcho(t *testing.T) (server, client *System) {
	server = CreateTestServer(t, func(s *System) {
		s.RegisterOnDemand(func(id identity.ID) (Actor, error) {
			if id.TypeTag() != "Echo" {
				return nil, nil
			}
			return newEchoActor(s, id), nil
		})
	})
	client = CreateTestClient(t, server)
	return server, client
}

func TestSystem_call_roundtrip(t *testing.T) {
	server, client := setupEcho(t)
	id := client.ActorID("Echo", "e1")

	pong, err := Call[string](t.Context(), client, id, "ping")
	require.NoError(t, err)
	require.Equal(t, "pong", pong)

	up, err := Call[string](t.Context(), client, id, "upper", "hello")
	require.NoError(t, err)
	require.Equal(t, "HELLO", up)

	g, err := Call[greeting](t.Context(), client, id, "greet", greeting{Name: "a", Count: 1})
	require.NoError(t, err)
	require.Equal(t, greeting{Name: "a", Count: 2}, g)

	require.NoError(t, CallVoid(t.Context(), client, id, "remember", "x"))

	// created on demand exactly once on the server side
	a, ok, err := Resolve[*echoActor](server, server.ActorID("Echo", "e1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"x"}, a.remembered())
	require.Equal(t, 1, server.Registry().Len())
}

func TestSystem_concurrent_calls(t *testing.T) {
	_, client := setupEcho(t)
	id := client.ActorID("Echo", "e1")

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := Call[greeting](t.Context(), client, id, "greet", greeting{Count: i})
			if err == nil && g.Count != i+1 {
				err = errors.New("mismatched reply")
			}
			errs[i] = err
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestSystem_remote_errors(t *testing.T) {
	_, client := setupEcho(t)
	id := client.ActorID("Echo", "e1")

	err := CallVoid(t.Context(), client, id, "fail")
	require.ErrorIs(t, err, ErrRemoteFailure)
	require.NotContains(t, err.Error(), "secret")

	require.ErrorIs(t, CallVoid(t.Context(), client, id, "panic"), ErrRemoteFailure)
	require.ErrorIs(t, CallVoid(t.Context(), client, id, "missing"), ErrRemoteFailure)

	// insufficient arguments surface as a remote failure too
	_, err = Call[string](t.Context(), client, id, "upper")
	require.ErrorIs(t, err, ErrRemoteFailure)
}

func TestSystem_call_preconditions(t *testing.T) {
	server, client := setupEcho(t)

	_, err := Call[string](t.Context(), server, server.ActorID("Echo", "e1"), "ping")
	require.ErrorIs(t, err, ErrServerInitiated)

	foreign := identity.Full("Echo", "e1", identity.Endpoint{Protocol: identity.ProtocolWS, Host: "elsewhere", Port: 1})
	_, err = Call[string](t.Context(), client, foreign, "ping")
	require.ErrorIs(t, err, ErrForeignIdentity)

	offline := New(Options{Mode: ModeClient, Endpoint: server.Endpoint()})
	_, err = Call[string](t.Context(), offline, offline.ActorID("Echo", "e1"), "ping")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSystem_ctx_cancel_forgets_call(t *testing.T) {
	server := CreateTestServer(t, func(s *System) {
		s.RegisterOnDemand(func(id identity.ID) (Actor, error) {
			a := &blockingActor{id: id}
			a.targets = NewTargets(Target0Void("block", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}))
			return a, nil
		})
	})
	client := CreateTestClient(t, server)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	err := CallVoid(ctx, client, client.ActorID("Block", "1"), "block")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, client.calls.len())
}

func TestSystem_connection_loss_fails_pending(t *testing.T) {
	server := CreateTestServer(t, func(s *System) {
		s.RegisterOnDemand(func(id identity.ID) (Actor, error) {
			a := &blockingActor{id: id}
			a.targets = NewTargets(Target0Void("block", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}))
			return a, nil
		})
	})
	client := CreateTestClient(t, server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- CallVoid(context.Background(), client, client.ActorID("Block", "1"), "block")
	}()
	require.Eventually(t, func() bool { return client.calls.len() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Close())
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("pending call not failed")
	}
}

type blockingActor struct {
	id      identity.ID
	targets Targets
}

func (a *blockingActor) ID() identity.ID  { return a.id }
func (a *blockingActor) Targets() Targets { return a.targets }

// recordingConn captures what the dispatcher sends back.
type recordingConn struct {
	mu   sync.Mutex
	sent []wire.Envelope
	done chan struct{}
}

func newRecordingConn() *recordingConn { return &recordingConn{done: make(chan struct{})} }

func (c *recordingConn) Send(_ context.Context, env wire.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}
func (c *recordingConn) Close() error          { return nil }
func (c *recordingConn) Done() <-chan struct{} { return c.done }
func (c *recordingConn) RemoteAddr() string    { return "test" }

func (c *recordingConn) Sent() []wire.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Envelope(nil), c.sent...)
}

var _ transport.Conn = (*recordingConn)(nil)

type countingMetrics struct {
	nopMetrics
	mu          sync.Mutex
	deadLetters []string
}

func (m *countingMetrics) DeadLetter(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLetters = append(m.deadLetters, reason)
}

func TestSystem_dead_letter(t *testing.T) {
	m := &countingMetrics{}
	ep := identity.Endpoint{Protocol: identity.ProtocolWS, Host: "127.0.0.1", Port: 9}
	sys := New(Options{Mode: ModeServer, Endpoint: ep, Metrics: m})
	c := newRecordingConn()

	enc := wire.NewInvocationEncoder()
	require.NoError(t, enc.RecordArgument("x"))

	require.NotPanics(t, func() {
		sys.HandleEnvelope(t.Context(), c, wire.NewCall(enc.Envelope("c1", identity.Full("Nobody", "1", ep), "hello")))
		sys.HandleEnvelope(t.Context(), c, wire.NewCall(enc.Envelope("c2", identity.Simple("nobody"), "hello")))
		// addressed elsewhere: never resolved locally
		other := identity.Endpoint{Protocol: identity.ProtocolWS, Host: "127.0.0.1", Port: 10}
		sys.HandleEnvelope(t.Context(), c, wire.NewCall(enc.Envelope("c3", identity.Full("Nobody", "1", other), "hello")))
	})

	require.NoError(t, sys.Close())
	require.Empty(t, c.Sent())
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.deadLetters, 3)
}

func TestSystem_dispatch_reply_and_close(t *testing.T) {
	ep := identity.Endpoint{Protocol: identity.ProtocolWS, Host: "127.0.0.1", Port: 9}
	sys := New(Options{Mode: ModeServer, Endpoint: ep})
	t.Cleanup(func() { _ = sys.Close() })
	a := newEchoActor(sys, sys.ActorID("Echo", "1"))
	c := newRecordingConn()

	enc := wire.NewInvocationEncoder()
	require.NoError(t, enc.RecordArgument("abc"))
	sys.HandleEnvelope(t.Context(), c, wire.NewCall(enc.Envelope("c1", a.ID(), "upper")))

	require.Eventually(t, func() bool { return len(c.Sent()) == 1 }, 5*time.Second, 10*time.Millisecond)
	reply := c.Sent()[0].Reply
	require.NotNil(t, reply)
	require.Equal(t, "c1", reply.CallID)
	require.Equal(t, a.ID(), *reply.Sender)
	require.JSONEq(t, `"ABC"`, string(reply.Value))
	require.False(t, reply.Failed())
}

func TestSystem_ResolveAny_wildcard_host(t *testing.T) {
	sys := New(Options{Mode: ModeServer, Endpoint: identity.Endpoint{Host: "0.0.0.0", Port: 8888}})
	a := &testActor{id: identity.Full("T", "1", identity.Endpoint{Protocol: identity.ProtocolWS, Host: "chat.local", Port: 8888})}
	sys.Ready(a)

	got, ok := sys.ResolveAny(a.id)
	require.True(t, ok)
	require.Same(t, a, got)

	client := New(Options{Mode: ModeClient, Endpoint: a.id.Endpoint()})
	client.Ready(a)
	_, ok = client.ResolveAny(a.id)
	require.False(t, ok)
}

func TestMakeActorWithID(t *testing.T) {
	sys := New(Options{Mode: ModeServer})
	id := sys.ActorID("Echo", "x")
	a := MakeActorWithID(sys, id, func(id identity.ID) *testActor {
		a := &testActor{id: id}
		sys.Ready(a)
		return a
	})
	require.Equal(t, id, a.ID())
	require.Panics(t, func() {
		MakeActorWithID(sys, id, func(id identity.ID) *testActor { return &testActor{id: id} })
	})
}

func TestSystem_dispatch_generic_substitutions(t *testing.T) {
	ep := identity.Endpoint{Protocol: identity.ProtocolWS, Host: "127.0.0.1", Port: 9}
	sys := New(Options{Mode: ModeServer, Endpoint: ep})
	t.Cleanup(func() { _ = sys.Close() })
	name := wire.RegisterType[greeting](sys.Types())

	a := &blockingActor{id: sys.ActorID("Generic", "1"), targets: Targets{
		"kinds": func(_ context.Context, dec *wire.InvocationDecoder) (any, error) {
			var out []string
			for _, rt := range dec.DecodeGenericSubstitutions() {
				out = append(out, wire.TypeName(rt))
			}
			return out, nil
		},
	}}
	sys.Ready(a)
	c := newRecordingConn()

	enc := wire.NewInvocationEncoder()
	wire.RecordGeneric[greeting](enc)
	sys.HandleEnvelope(t.Context(), c, wire.NewCall(enc.Envelope("c1", a.ID(), "kinds")))

	require.Eventually(t, func() bool { return len(c.Sent()) == 1 }, 5*time.Second, 10*time.Millisecond)
	reply := c.Sent()[0].Reply
	require.NotNil(t, reply)
	require.False(t, reply.Failed())
	require.JSONEq(t, `["`+name+`"]`, string(reply.Value))
}

func TestSystem_connection_close_envelope_does_not_block(t *testing.T) {
	sys := New(Options{Mode: ModeServer})
	t.Cleanup(func() { _ = sys.Close() })
	c := newRecordingConn()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sys.HandleEnvelope(t.Context(), c, wire.NewConnectionClose())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleEnvelope blocked on a close envelope")
	}
	require.Empty(t, c.Sent())
}
