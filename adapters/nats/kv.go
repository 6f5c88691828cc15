package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/wsactor/ports/kv"
)

type KvConfig struct {
	Connect Connector
	Bucket  string
	// TTL applies to the whole bucket; JetStream has no per-key TTL.
	TTL      time.Duration
	MaxBytes int64
	Log      *slog.Logger
}

// KvStore implements kv.Store on a JetStream key/value bucket.
type KvStore struct {
	kv    jetstream.KeyValue
	close closeFunc
	log   *slog.Logger
}

func NewKvStore(ctx context.Context, cfg KvConfig) (*KvStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("nats: bucket is required")
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 64 * 1024 * 1024
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeConn, err := doConnect()
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeConn()
		return nil, err
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Bucket,
		Storage:  jetstream.FileStorage,
		MaxBytes: cfg.MaxBytes,
		TTL:      cfg.TTL,
	})
	if err != nil {
		closeConn()
		return nil, fmt.Errorf("nats: create bucket %s: %w", cfg.Bucket, err)
	}

	log.Debug("kv bucket ready", slog.String("bucket", cfg.Bucket))
	return &KvStore{kv: bucket, close: closeConn, log: log}, nil
}

func (k *KvStore) Put(ctx context.Context, key string, entry kv.Entry, opts kv.PutOptions) error {
	if opts.TTL > 0 {
		k.log.Debug("per-key TTL not supported, using bucket TTL", slog.String("key", key))
	}
	if _, err := k.kv.Put(ctx, key, entry.Data); err != nil {
		return fmt.Errorf("nats: put %s: %w", key, err)
	}
	return nil
}

func (k *KvStore) Get(ctx context.Context, key string) (kv.Entry, error) {
	v, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return kv.Entry{}, kv.ErrNotFound
		}
		return kv.Entry{}, fmt.Errorf("nats: get %s: %w", key, err)
	}
	return kv.Entry{Data: v.Value(), Revision: v.Revision()}, nil
}

func (k *KvStore) Delete(ctx context.Context, key string) error {
	if err := k.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the connection lease.
func (k *KvStore) Close() error {
	if k.close != nil {
		k.close()
	}
	return nil
}

var _ kv.Store = (*KvStore)(nil)
