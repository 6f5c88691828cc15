package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	type Foo struct {
		Name string
		Age  int
	}
	s := NewMemStore()

	_, err := Get[Foo](t.Context(), s, "foobar")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Put(t.Context(), s, "p1", Foo{Name: "P1", Age: 10}, PutOptions{}))
	require.NoError(t, Put(t.Context(), s, "p2", Foo{Name: "P2", Age: 20}, PutOptions{}))

	loaded, err := Get[Foo](t.Context(), s, "p1")
	require.NoError(t, err)
	require.Equal(t, Foo{Name: "P1", Age: 10}, loaded)

	require.NoError(t, Update(t.Context(), s, "p1", func(f *Foo) error {
		f.Age++
		return nil
	}))
	e, err := s.Get(t.Context(), "p1")
	require.NoError(t, err)
	require.Equal(t, uint64(2), e.Revision)

	boom := errors.New("boom")
	require.ErrorIs(t, Update(t.Context(), s, "p1", func(*Foo) error { return boom }), boom)
	require.ErrorIs(t, Update(t.Context(), s, "missing", func(*Foo) error { return nil }), ErrNotFound)

	require.NoError(t, s.Delete(t.Context(), "p1"))
	_, err = Get[Foo](t.Context(), s, "p1")
	require.ErrorIs(t, err, ErrNotFound)
}
