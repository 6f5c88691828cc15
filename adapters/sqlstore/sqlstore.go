// Package sqlstore implements the chat store on database/sql with the
// sqlite3 and mysql drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codewandler/wsactor/ports/store"
)

type Options struct {
	Dialect Dialect
	DSN     string
	Log     *slog.Logger
	// MaxOpenConns defaults to 1 for sqlite, which serializes writers.
	MaxOpenConns int
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Dialect.Driver == "" {
		opts.Dialect = SQLite
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.MaxOpenConns == 0 && opts.Dialect.Driver == SQLite.Driver {
		opts.MaxOpenConns = 1
	}

	db, err := sql.Open(opts.Dialect.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", opts.Dialect.Driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	s := &Store{
		db:      db,
		dialect: opts.Dialect,
		log:     opts.Log.With(slog.String("driver", opts.Dialect.Driver)),
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	s.log.Debug("schema ready")
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetRoom(ctx context.Context, name string) (store.Room, error) {
	var room store.Room
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := roomExists(ctx, tx, name); err != nil {
			return err
		}
		room = store.NewRoom(name)

		rows, err := tx.QueryContext(ctx,
			"SELECT `user`, status FROM user_rooms WHERE room = ? ORDER BY seq", name)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				user   string
				status int
			)
			if err := rows.Scan(&user, &status); err != nil {
				_ = rows.Close()
				return err
			}
			room.Guests = append(room.Guests, user)
			room.Statuses[user] = store.Status(status)
		}
		if err := closeRows(rows); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx,
			"SELECT `user`, text, created_at FROM messages WHERE room = ? ORDER BY id", name)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				user, text string
				createdAt  int64
			)
			if err := rows.Scan(&user, &text, &createdAt); err != nil {
				_ = rows.Close()
				return err
			}
			room.Messages[user] = append(room.Messages[user], store.Message{
				CreatedAt: time.Unix(0, createdAt).UTC(),
				Text:      text,
			})
		}
		return closeRows(rows)
	})
	return room, err
}

func (s *Store) CreateRoom(ctx context.Context, room store.Room) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.InsertIgnore+" INTO rooms (name) VALUES (?)", room.Name)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("%w: room %s", store.ErrAlreadyExists, room.Name)
		}
		for _, guest := range room.Guests {
			status, ok := room.Statuses[guest]
			if !ok {
				status = store.StatusOnline
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO user_rooms (room, `user`, status) VALUES (?, ?, ?)", room.Name, guest, int(status)); err != nil {
				return err
			}
		}
		for user, msgs := range room.Messages {
			for _, m := range msgs {
				if err := insertMessage(ctx, tx, room.Name, user, m); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) AddGuest(ctx context.Context, room, user string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if err := roomExists(ctx, tx, room); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			s.dialect.InsertIgnore+" INTO user_rooms (room, `user`, status) VALUES (?, ?, ?)",
			room, user, int(store.StatusOnline))
		return err
	})
}

func (s *Store) AppendMessage(ctx context.Context, room, user string, msg store.Message) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if err := roomExists(ctx, tx, room); err != nil {
			return err
		}
		return insertMessage(ctx, tx, room, user, msg)
	})
}

func (s *Store) UpdateStatus(ctx context.Context, room, user string, status store.Status) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if err := roomExists(ctx, tx, room); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE user_rooms SET status = ? WHERE room = ? AND `user` = ?", int(status), room, user)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n > 0 {
			return err
		}
		// Unchanged rows report 0 on mysql, so the insert must tolerate the row.
		_, err = tx.ExecContext(ctx,
			s.dialect.InsertIgnore+" INTO user_rooms (room, `user`, status) VALUES (?, ?, ?)", room, user, int(status))
		return err
	})
}

func (s *Store) GetUser(ctx context.Context, name string) (store.User, error) {
	u := store.User{Name: name}
	err := s.db.QueryRowContext(ctx, "SELECT room FROM users WHERE name = ?", name).Scan(&u.Room)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("%w: user %s", store.ErrNotFound, name)
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, user store.User) error {
	res, err := s.db.ExecContext(ctx,
		s.dialect.InsertIgnore+" INTO users (name, room) VALUES (?, ?)", user.Name, user.Room)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: user %s", store.ErrAlreadyExists, user.Name)
	}
	return nil
}

func (s *Store) SetRoom(ctx context.Context, user, room string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx, "SELECT name FROM users WHERE name = ?", user).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %s", store.ErrNotFound, user)
		} else if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE users SET room = ? WHERE name = ?", room, user)
		return err
	})
}

func (s *Store) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func roomExists(ctx context.Context, tx *sql.Tx, name string) error {
	var found string
	err := tx.QueryRowContext(ctx, "SELECT name FROM rooms WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: room %s", store.ErrNotFound, name)
	}
	return err
}

func insertMessage(ctx context.Context, tx *sql.Tx, room, user string, m store.Message) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO messages (room, `user`, text, created_at) VALUES (?, ?, ?, ?)",
		room, user, m.Text, m.CreatedAt.UnixNano())
	return err
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

var _ store.Store = (*Store)(nil)
