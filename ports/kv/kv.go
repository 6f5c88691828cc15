// Package kv is the key/value port behind the record stores. Values are
// opaque bytes; the typed helpers encode with the internal JSON codec.
package kv

import (
	"context"
	"errors"
	"time"

	"github.com/codewandler/wsactor/internal/codec"
)

var (
	ErrNotFound = errors.New("not found")
)

type Entry struct {
	Data []byte
	// Revision increases with every write of the key; 0 if the backend
	// does not track it.
	Revision uint64
}

type PutOptions struct {
	TTL time.Duration
}

type Store interface {
	Put(ctx context.Context, key string, entry Entry, opts PutOptions) error
	Get(ctx context.Context, key string) (entry Entry, err error)
	Delete(ctx context.Context, key string) error
}

func Put[T any](ctx context.Context, store Store, key string, v T, opts PutOptions) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, Entry{Data: data}, opts)
}

func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	entry, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	err = codec.Default.Unmarshal(entry.Data, &out)
	return
}

// Update reads key, applies fn and writes the result back. It is not
// atomic by itself; callers serialize updates of one key.
func Update[T any](ctx context.Context, store Store, key string, fn func(v *T) error) error {
	v, err := Get[T](ctx, store, key)
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		return err
	}
	return Put(ctx, store, key, v, PutOptions{})
}
