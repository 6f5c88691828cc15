package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// RunStoreTests checks a Store implementation against the contract.
// Every call of newStore must return an empty store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("room lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		_, err := s.GetRoom(ctx, "lobby")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.CreateRoom(ctx, NewRoom("lobby")))
		require.ErrorIs(t, s.CreateRoom(ctx, NewRoom("lobby")), ErrAlreadyExists)

		require.NoError(t, s.AddGuest(ctx, "lobby", "alice"))
		require.NoError(t, s.AddGuest(ctx, "lobby", "alice"))

		at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.AppendMessage(ctx, "lobby", "alice", Message{CreatedAt: at, Text: "hi"}))
		require.NoError(t, s.AppendMessage(ctx, "lobby", "alice", Message{CreatedAt: at.Add(time.Second), Text: "there"}))
		require.NoError(t, s.UpdateStatus(ctx, "lobby", "alice", StatusTexting))

		r, err := s.GetRoom(ctx, "lobby")
		require.NoError(t, err)
		require.Equal(t, "lobby", r.Name)
		require.Equal(t, []string{"alice"}, r.Guests)
		require.Equal(t, StatusTexting, r.Statuses["alice"])
		require.Len(t, r.Messages["alice"], 2)
		require.Equal(t, "hi", r.Messages["alice"][0].Text)
		require.True(t, at.Equal(r.Messages["alice"][0].CreatedAt))
		require.Equal(t, "there", r.Messages["alice"][1].Text)
	})

	t.Run("unknown room", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.ErrorIs(t, s.AddGuest(ctx, "nope", "alice"), ErrNotFound)
		require.ErrorIs(t, s.UpdateStatus(ctx, "nope", "alice", StatusOnline), ErrNotFound)
		require.ErrorIs(t, s.AppendMessage(ctx, "nope", "alice", Message{Text: "x"}), ErrNotFound)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.CreateRoom(ctx, NewRoom("busy")))

		const n = 20
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.AppendMessage(ctx, "busy", "bob", Message{CreatedAt: time.Now().UTC(), Text: fmt.Sprint(i)})
			}()
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		r, err := s.GetRoom(ctx, "busy")
		require.NoError(t, err)
		require.Len(t, r.Messages["bob"], n)
	})

	t.Run("user lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		_, err := s.GetUser(ctx, "alice")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.CreateUser(ctx, User{Name: "alice"}))
		require.ErrorIs(t, s.CreateUser(ctx, User{Name: "alice"}), ErrAlreadyExists)

		require.NoError(t, s.SetRoom(ctx, "alice", "lobby"))
		u, err := s.GetUser(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, User{Name: "alice", Room: "lobby"}, u)

		require.NoError(t, s.SetRoom(ctx, "alice", ""))
		u, err = s.GetUser(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, u.Room)

		require.ErrorIs(t, s.SetRoom(ctx, "nobody", "lobby"), ErrNotFound)
	})
}
