package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/wsactor/adapters/nats"
	"github.com/codewandler/wsactor/adapters/sqlstore"
	"github.com/codewandler/wsactor/internal/config"
	"github.com/codewandler/wsactor/ports/store"
)

// OpenStore opens the backing store named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemStore(), nil

	case "sqlite", "mysql":
		dialect := sqlstore.SQLite
		if cfg.Driver == "mysql" {
			dialect = sqlstore.MySQL
		}
		s, err := sqlstore.Open(ctx, sqlstore.Options{Dialect: dialect, DSN: cfg.DSN, Log: log})
		if err != nil {
			return nil, err
		}
		return s, nil

	case "nats":
		connect := nats.ConnectDefault()
		if cfg.NatsURL != "" {
			connect = nats.ConnectURL(cfg.NatsURL)
		}
		kv, err := nats.NewKvStore(ctx, nats.KvConfig{Connect: connect, Bucket: cfg.Bucket, Log: log})
		if err != nil {
			return nil, err
		}
		return &kvBacked{KVStore: store.NewKVStore(kv), kv: kv}, nil
	}
	return nil, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
}

// kvBacked closes the bucket connection together with the store.
type kvBacked struct {
	*store.KVStore
	kv *nats.KvStore
}

func (k *kvBacked) Close() error {
	_ = k.KVStore.Close()
	return k.kv.Close()
}
