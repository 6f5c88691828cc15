package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/transport"
)

// CreateTestServer starts a server system on a loopback port. setup runs
// before the first connection is accepted.
func CreateTestServer(t *testing.T, setup func(s *System)) *System {
	t.Helper()
	sys := New(Options{
		Mode:     ModeServer,
		Endpoint: identity.Endpoint{Protocol: identity.ProtocolWS, Host: "127.0.0.1"},
	})
	if setup != nil {
		setup(sys)
	}

	srv, err := sys.NewServer(transport.ServerOptions{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	sys.SetEndpoint(identity.Endpoint{Protocol: identity.ProtocolWS, Host: "127.0.0.1", Port: srv.Port()})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()

	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		require.NoError(t, <-errCh)
		require.NoError(t, sys.Close())
	})
	return sys
}

// CreateTestClient connects a client system to server.
func CreateTestClient(t *testing.T, server *System) *System {
	t.Helper()
	sys := New(Options{Mode: ModeClient, Endpoint: server.Endpoint()})
	require.NoError(t, sys.Connect(t.Context(), transport.DialOptions{}))
	t.Cleanup(func() {
		_ = sys.Close()
	})
	return sys
}
