// Package integration runs the chat scenario across a real server and two
// websocket clients.
package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/wsactor/adapters/sqlstore"
	"github.com/codewandler/wsactor/chat"
	"github.com/codewandler/wsactor/core/app"
	"github.com/codewandler/wsactor/ports/store"
)

func newServer(t *testing.T, st store.Store) *app.Server {
	t.Helper()
	srv, err := app.NewServer(app.ServerConfig{
		Addr:    "127.0.0.1:0",
		Store:   st,
		Metrics: app.MetricsConfig{Enabled: true},
	})
	require.NoError(t, err)
	errCh, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
		require.NoError(t, <-errCh)
	})
	return srv
}

func newClient(t *testing.T, srv *app.Server) *app.Client {
	t.Helper()
	c, err := app.NewClient(t.Context(), app.ClientConfig{Endpoint: srv.Endpoint()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func runScenario(t *testing.T, srv *app.Server) {
	ctx := t.Context()
	client1, client2 := newClient(t, srv), newClient(t, srv)

	user1, err := client1.User("user1")
	require.NoError(t, err)
	user2, err := client2.User("user2")
	require.NoError(t, err)
	room, err := client1.Room("lobby")
	require.NoError(t, err)

	_, err = user1.Send(ctx, chat.Join("lobby"))
	require.NoError(t, err)

	rs, err := room.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"user1"}, rs.Guests)
	require.Equal(t, store.StatusOnline, rs.Statuses["user1"])
	require.Empty(t, rs.Messages)

	_, err = user2.Send(ctx, chat.Join("lobby"))
	require.NoError(t, err)

	updates := make(chan chat.RoomState, 1)
	failed := make(chan error, 1)
	go func() {
		rs, err := room.Updates(ctx)
		if err != nil {
			failed <- err
			return
		}
		updates <- rs
	}()

	hosted, ok := srv.Directory().LocalRoom("lobby")
	require.True(t, ok)
	require.Eventually(t, hosted.Subscribed, 2*time.Second, 5*time.Millisecond)

	_, err = user2.Send(ctx, chat.Send("hello from user2"))
	require.NoError(t, err)

	select {
	case rs := <-updates:
		require.Len(t, rs.Messages["user2"], 1)
		require.Equal(t, "hello from user2", rs.Messages["user2"][0].Text)
		require.ElementsMatch(t, []string{"user1", "user2"}, rs.Guests)
	case err := <-failed:
		t.Fatalf("updates failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no room update")
	}

	// user1 is told about the message through the room broadcast
	require.Eventually(t, func() bool {
		s, err := user1.CurrentState(ctx)
		return err == nil && s.RoomUpdates > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = user2.Send(ctx, chat.Update(store.StatusTexting))
	require.NoError(t, err)
	rs, err = room.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, store.StatusTexting, rs.Statuses["user2"])

	_, err = user1.Send(ctx, chat.Exit())
	require.NoError(t, err)
	_, err = user2.Send(ctx, chat.Exit())
	require.NoError(t, err)
	rs, err = room.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, store.StatusOffline, rs.Statuses["user1"])
	require.Equal(t, store.StatusOffline, rs.Statuses["user2"])
}

func TestChat_memory(t *testing.T) {
	runScenario(t, newServer(t, store.NewMemStore()))
}

func TestChat_sqlite(t *testing.T) {
	dsn := sqlstore.SQLiteMemoryDSN(fmt.Sprintf("integration_%d", time.Now().UnixNano()))
	st, err := sqlstore.Open(t.Context(), sqlstore.Options{DSN: dsn})
	require.NoError(t, err)

	srv := newServer(t, st)
	runScenario(t, srv)

	// persisted state survives the actor: reopen the room from the store
	require.Eventually(t, func() bool {
		r, err := st.GetRoom(t.Context(), "lobby")
		return err == nil && len(r.Messages["user2"]) == 1 && r.Statuses["user2"] == store.StatusOffline
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Directory().CloseRoom(t.Context(), "lobby"))

	c := newClient(t, srv)
	room, err := c.Room("lobby")
	require.NoError(t, err)
	rs, err := room.CurrentState(t.Context())
	require.NoError(t, err)
	require.Equal(t, "hello from user2", rs.Messages["user2"][0].Text)
}
