package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/reactor/internal/channel"
	"github.com/roach88/reactor/internal/storage"
	"github.com/roach88/reactor/internal/store"
)

// session is one open persistent store over the configured database.
type session struct {
	db      *storage.SQLite
	channel *channel.SQLite
	store   *store.Persistent
}

func openDatabase(path string) (*storage.SQLite, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database configured (use --db or the database config key)")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}
	slog.Debug("opening database", "path", path)
	db, err := storage.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return db, nil
}

// openSession opens the database, joins the broadcast channel and loads the
// persisted document.
func openSession(ctx context.Context, opts *RootOptions, chOpts ...channel.SQLiteOption) (*session, error) {
	cfg := opts.Config
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	chOpts = append([]channel.SQLiteOption{channel.WithPollInterval(cfg.PollInterval)}, chOpts...)
	ch, err := channel.OpenSQLite(ctx, db.DB(), cfg.Channel, chOpts...)
	if err != nil {
		db.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open broadcast channel", err)
	}

	p := store.NewPersistent(ctx, db,
		store.WithVersion(cfg.Version),
		store.WithKey(cfg.StoreKey),
		store.WithWriteTimeout(cfg.WriteTimeout),
		store.WithChannel(ch),
	)
	slog.Debug("session opened", "channel", ch.Name(), "origin", p.Origin(), "version", p.Version())
	return &session{db: db, channel: ch, store: p}, nil
}

// attach registers a persisted name with its stored layout so it can be
// mutated or receive broadcasts. Returns false when name is not persisted.
func (s *session) attach(name string) (bool, error) {
	e, ok := s.store.Snapshot().Store[name]
	if !ok {
		return false, nil
	}
	if _, err := s.register(name, e.Data, e.Recursive); err != nil {
		return false, err
	}
	return true, nil
}

func (s *session) register(name string, initial any, recursive bool) (any, error) {
	inst := s.store.Register(name, initial, recursive)
	if _, ok := s.store.Lookup(name); !ok {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("store %q holds a scalar and cannot be edited by path", name))
	}
	return inst, nil
}

func (s *session) close() {
	s.store.Close()
	if err := s.channel.Close(); err != nil {
		slog.Error("error closing broadcast channel", "error", err)
	}
	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
