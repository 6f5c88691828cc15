package sqlstore

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codewandler/wsactor/ports/store"
)

var dbSeq atomic.Int64

func newSQLite(t *testing.T) *Store {
	s, err := Open(t.Context(), Options{
		Dialect: SQLite,
		DSN:     SQLiteMemoryDSN(fmt.Sprintf("test_%d", dbSeq.Add(1))),
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestSQLite_store_contract(t *testing.T) {
	store.RunStoreTests(t, func(t *testing.T) store.Store { return newSQLite(t) })
}

func TestSQLite_reopen_keeps_schema(t *testing.T) {
	dsn := SQLiteMemoryDSN("reopen")
	s1, err := Open(t.Context(), Options{DSN: dsn})
	require.NoError(t, err)
	defer s1.Close()
	require.NoError(t, s1.CreateRoom(t.Context(), store.NewRoom("lobby")))

	// a second pool on the same shared cache sees the data, migrations are idempotent
	s2, err := Open(t.Context(), Options{DSN: dsn})
	require.NoError(t, err)
	defer s2.Close()
	r, err := s2.GetRoom(t.Context(), "lobby")
	require.NoError(t, err)
	require.Equal(t, "lobby", r.Name)
}

func TestSQLite_create_room_with_guests(t *testing.T) {
	s := newSQLite(t)
	room := store.NewRoom("seeded")
	room.Guests = []string{"a", "b"}
	room.Statuses["b"] = store.StatusOffline
	room.Messages["a"] = []store.Message{{Text: "hello"}}
	require.NoError(t, s.CreateRoom(t.Context(), room))

	got, err := s.GetRoom(t.Context(), "seeded")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got.Guests)
	require.Equal(t, store.StatusOnline, got.Statuses["a"])
	require.Equal(t, store.StatusOffline, got.Statuses["b"])
	require.Len(t, got.Messages["a"], 1)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN("chat", "secret", "db:3306", "chat")
	require.Contains(t, dsn, "chat:secret@tcp(db:3306)/chat")
	require.Contains(t, dsn, "charset=utf8mb4")
}

func TestMySQL_store_contract(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := t.Context()
	c, err := testcontainers.Run(
		ctx, "mysql:8.4",
		testcontainers.WithEnv(map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_DATABASE":      "chat",
		}),
		testcontainers.WithExposedPorts("3306/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server"),
			wait.ForListeningPort("3306/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Errorf("failed to terminate container: %s", err.Error())
		}
	})
	addr, err := c.PortEndpoint(ctx, "3306/tcp", "")
	require.NoError(t, err)

	store.RunStoreTests(t, func(t *testing.T) store.Store {
		s, err := Open(t.Context(), Options{Dialect: MySQL, DSN: MySQLDSN("root", "secret", addr, "chat")})
		require.NoError(t, err)
		t.Cleanup(func() {
			for _, tbl := range []string{"messages", "user_rooms", "users", "rooms"} {
				_, _ = s.db.Exec("DELETE FROM " + tbl)
			}
			_ = s.Close()
		})
		return s
	})
}
