package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/wsactor/core/future"
	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/reducer"
	"github.com/codewandler/wsactor/core/system"
	"github.com/codewandler/wsactor/ports/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newLocalServer(t *testing.T) (*system.System, *Directory, store.Store) {
	t.Helper()
	sys := system.New(system.Options{
		Mode:     system.ModeServer,
		Endpoint: identity.Endpoint{Protocol: identity.ProtocolWS, Host: "127.0.0.1", Port: 8888},
	})
	st := store.NewMemStore()
	dir := RegisterFactories(sys, DirectoryOptions{Store: st, Now: func() time.Time { return fixedNow }})
	t.Cleanup(func() {
		dir.Close()
		_ = sys.Close()
		_ = st.Close()
	})
	return sys, dir, st
}

func TestRoomReducer(t *testing.T) {
	reduce := reduceRoom(store.NewMemStore(), nil, func() time.Time { return fixedNow }, nil)
	room := store.NewRoom("lobby")

	step := reduce(&room, Connect("alice"))
	require.Equal(t, []string{"alice"}, room.Guests)
	require.NotNil(t, step.Next)
	require.Equal(t, SetStatus(store.StatusOnline, "alice"), *step.Next)
	require.NotNil(t, step.Effect)

	reduce(&room, Connect("alice"))
	require.Equal(t, []string{"alice"}, room.Guests)

	step = reduce(&room, Say("hi", "alice"))
	require.Nil(t, step.Next)
	require.Equal(t, []store.Message{{CreatedAt: fixedNow, Text: "hi"}}, room.Messages["alice"])

	reduce(&room, SetStatus(store.StatusTexting, "alice"))
	require.Equal(t, store.StatusTexting, room.Statuses["alice"])

	reduce(&room, Disconnect("alice"))
	require.Equal(t, store.StatusOffline, room.Statuses["alice"])

	step = reduce(&room, RoomAction{Kind: "dance"})
	require.ErrorIs(t, step.Then(t.Context()), ErrUnknownAction)
}

func TestUserReducer(t *testing.T) {
	reduce := reduceUser(store.NewMemStore(), nil)
	u := UserState{Name: "alice"}

	step := reduce(&u, Send("hi"))
	require.ErrorIs(t, step.Then(t.Context()), ErrNotInRoom)

	step = reduce(&u, Update(store.StatusTexting))
	require.Nil(t, step.Then)

	step = reduce(&u, Join("lobby"))
	require.Equal(t, "lobby", u.Room)
	require.NotNil(t, step.Then)
	require.NotNil(t, step.Effect)

	step = reduce(&u, Exit())
	require.Empty(t, u.Room)
	require.Equal(t, Update(store.StatusOffline), *step.Next)
	require.NotNil(t, step.Then)

	reduce(&u, RoomDidUpdate("lobby"))
	reduce(&u, RoomDidUpdate("lobby"))
	require.Equal(t, "lobby", u.LastUpdate)
	require.Equal(t, 2, u.RoomUpdates)
}

func TestResolve_local_on_server(t *testing.T) {
	sys, dir, _ := newLocalServer(t)

	r1, err := ResolveRoom(sys, "lobby")
	require.NoError(t, err)
	r2, err := ResolveRoom(sys, "lobby")
	require.NoError(t, err)
	require.Same(t, r1, r2)
	require.IsType(t, &RoomActor{}, r1)

	local, ok := dir.LocalRoom("lobby")
	require.True(t, ok)
	require.Same(t, local, r1)

	u, err := ResolveUser(sys, "alice")
	require.NoError(t, err)
	require.IsType(t, &UserActor{}, u)
}

func TestResolve_stub_on_client(t *testing.T) {
	sys := system.New(system.Options{Mode: system.ModeClient})
	t.Cleanup(func() { _ = sys.Close() })

	r, err := ResolveRoom(sys, "lobby")
	require.NoError(t, err)
	require.IsType(t, &roomStub{}, r)
	require.Equal(t, TypeRoom, r.ID().TypeTag())

	_, err = r.CurrentState(t.Context())
	require.ErrorIs(t, err, system.ErrNotConnected)
}

func TestChat_local(t *testing.T) {
	sys, dir, st := newLocalServer(t)
	ctx := t.Context()

	alice, err := ResolveUser(sys, "alice")
	require.NoError(t, err)
	bob, err := ResolveUser(sys, "bob")
	require.NoError(t, err)

	_, err = alice.Send(ctx, Send("too early"))
	require.ErrorIs(t, err, ErrNotInRoom)

	s, err := alice.Send(ctx, Join("lobby"))
	require.NoError(t, err)
	require.Equal(t, "lobby", s.Room)

	room, err := ResolveRoom(sys, "lobby")
	require.NoError(t, err)
	rs, err := room.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, rs.Guests)
	require.Equal(t, store.StatusOnline, rs.Statuses["alice"])
	require.Empty(t, rs.Messages)

	_, err = bob.Send(ctx, Join("lobby"))
	require.NoError(t, err)
	_, err = bob.Send(ctx, Send("hello"))
	require.NoError(t, err)

	rs, err = room.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, []store.Message{{CreatedAt: fixedNow, Text: "hello"}}, rs.Messages["bob"])

	// broadcasts and persistence are detached
	require.Eventually(t, func() bool {
		s, err := alice.CurrentState(ctx)
		return err == nil && s.RoomUpdates > 0 && s.LastUpdate == "lobby"
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		r, err := st.GetRoom(ctx, "lobby")
		return err == nil && len(r.Messages["bob"]) == 1 && len(r.Guests) == 2
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		u, err := st.GetUser(ctx, "bob")
		return err == nil && u.Room == "lobby"
	}, time.Second, 5*time.Millisecond)

	_, err = alice.Send(ctx, Exit())
	require.NoError(t, err)
	require.ErrorIs(t, dir.CloseRoom(ctx, "lobby"), ErrRoomNotEmpty)

	_, err = bob.Send(ctx, Exit())
	require.NoError(t, err)
	rs, err = room.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, store.StatusOffline, rs.Statuses["alice"])
	require.Equal(t, store.StatusOffline, rs.Statuses["bob"])

	require.Eventually(t, func() bool {
		r, err := st.GetRoom(ctx, "lobby")
		return err == nil && r.Statuses["alice"] == store.StatusOffline && r.Statuses["bob"] == store.StatusOffline
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, dir.CloseRoom(ctx, "lobby"))

	// the room is loaded again from the store
	reopened, err := ResolveRoom(sys, "lobby")
	require.NoError(t, err)
	require.NotSame(t, room, reopened)
	rs, err = reopened.CurrentState(ctx)
	require.NoError(t, err)
	require.Len(t, rs.Messages["bob"], 1)
	require.ElementsMatch(t, []string{"alice", "bob"}, rs.Guests)
}

func TestChat_remote(t *testing.T) {
	var dir *Directory
	server := system.CreateTestServer(t, func(s *system.System) {
		dir = RegisterFactories(s, DirectoryOptions{Store: store.NewMemStore(), Now: func() time.Time { return fixedNow }})
	})
	t.Cleanup(dir.Close)
	client1 := system.CreateTestClient(t, server)
	client2 := system.CreateTestClient(t, server)
	ctx := t.Context()

	user1, err := ResolveUser(client1, "user1")
	require.NoError(t, err)
	require.IsType(t, &userStub{}, user1)

	s, err := user1.Send(ctx, Join("lobby"))
	require.NoError(t, err)
	require.Equal(t, UserState{Name: "user1", Room: "lobby"}, s)

	room1, err := ResolveRoom(client1, "lobby")
	require.NoError(t, err)
	rs, err := room1.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, store.StatusOnline, rs.Statuses["user1"])
	require.Empty(t, rs.Messages)

	user2, err := ResolveUser(client2, "user2")
	require.NoError(t, err)
	_, err = user2.Send(ctx, Join("lobby"))
	require.NoError(t, err)

	type result struct {
		room RoomState
		err  error
	}
	updates := make(chan result, 1)
	go func() {
		r, err := room1.Updates(ctx)
		updates <- result{r, err}
	}()

	hosted, ok := dir.LocalRoom("lobby")
	require.True(t, ok)
	require.Eventually(t, hosted.Subscribed, 2*time.Second, 5*time.Millisecond)

	_, err = user2.Send(ctx, Send("hi"))
	require.NoError(t, err)

	select {
	case res := <-updates:
		require.NoError(t, res.err)
		require.Equal(t, []store.Message{{CreatedAt: fixedNow, Text: "hi"}}, res.room.Messages["user2"])
	case <-time.After(5 * time.Second):
		t.Fatal("no room update")
	}

	// errors cross the wire as a fixed code
	_, err = user1.Send(ctx, UserAction{Kind: "dance"})
	require.ErrorIs(t, err, system.ErrRemoteFailure)
}

func TestRoomActor_cannot_load(t *testing.T) {
	sys := system.New(system.Options{Mode: system.ModeServer})
	t.Cleanup(func() { _ = sys.Close() })

	r := NewRoomActor(sys.ActorID(TypeRoom, "broken"), RoomOptions{Store: failingStore{}})
	t.Cleanup(r.Stop)

	_, err := r.CurrentState(context.Background())
	require.ErrorIs(t, err, reducer.ErrCannotLoad)
}

type failingStore struct{ store.RoomStore }

func (failingStore) GetRoom(context.Context, string) (store.Room, error) {
	return store.Room{}, context.DeadlineExceeded
}

func TestRoomActor_deterministic_sequence(t *testing.T) {
	sys, _, _ := newLocalServer(t)
	ctx := t.Context()
	room, err := ResolveRoom(sys, "lobby")
	require.NoError(t, err)
	hosted := room.(*RoomActor)

	// subscribers do not change the outcome
	const subscribers = 3
	promises := make([]*future.Promise[RoomState], subscribers)
	for i := range promises {
		promises[i] = hosted.state.Subscribe()
	}
	require.True(t, hosted.Subscribed())

	_, err = room.Send(ctx, Connect("A"))
	require.NoError(t, err)
	_, err = room.Send(ctx, Say("hi", "A"))
	require.NoError(t, err)
	rs, err := room.Send(ctx, SetStatus(store.StatusTexting, "A"))
	require.NoError(t, err)

	require.Equal(t, []string{"A"}, rs.Guests)
	require.Equal(t, []store.Message{{CreatedAt: fixedNow, Text: "hi"}}, rs.Messages["A"])
	require.Equal(t, store.StatusTexting, rs.Statuses["A"])

	for _, p := range promises {
		// woken by the first transition: connect plus its online follow-up
		first, err := p.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"A"}, first.Guests)
		require.Equal(t, store.StatusOnline, first.Statuses["A"])
		require.Empty(t, first.Messages)
	}
	require.False(t, hosted.Subscribed())
}

// slowStatusStore delays the first status write.
type slowStatusStore struct {
	store.RoomStore
	once sync.Once
}

func (s *slowStatusStore) UpdateStatus(ctx context.Context, room, user string, status store.Status) error {
	s.once.Do(func() { time.Sleep(30 * time.Millisecond) })
	return s.RoomStore.UpdateStatus(ctx, room, user, status)
}

func TestRoomActor_persists_in_commit_order(t *testing.T) {
	sys := system.New(system.Options{Mode: system.ModeServer})
	t.Cleanup(func() { _ = sys.Close() })
	mem := store.NewMemStore()
	t.Cleanup(func() { _ = mem.Close() })

	r := NewRoomActor(sys.ActorID(TypeRoom, "lobby"), RoomOptions{Store: &slowStatusStore{RoomStore: mem}})
	ctx := t.Context()

	_, err := r.Send(ctx, Connect("A"))
	require.NoError(t, err)
	committed, err := r.Send(ctx, SetStatus(store.StatusTexting, "A"))
	require.NoError(t, err)
	require.Equal(t, store.StatusTexting, committed.Statuses["A"])

	// Stop waits for pending writes
	r.Stop()

	persisted, err := mem.GetRoom(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, persisted.Guests)
	require.Equal(t, store.StatusTexting, persisted.Statuses["A"])
}
