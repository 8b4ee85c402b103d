package channel

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often Listen checks for new broadcasts.
const DefaultPollInterval = 250 * time.Millisecond

// SQLiteOption configures a SQLite channel endpoint.
type SQLiteOption func(*SQLite)

// WithOrigin overrides the generated origin id.
func WithOrigin(origin string) SQLiteOption {
	return func(s *SQLite) {
		s.origin = origin
	}
}

// WithPollInterval sets the Listen polling interval.
func WithPollInterval(d time.Duration) SQLiteOption {
	return func(s *SQLite) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCursor starts delivery after seq instead of after the newest row.
func WithCursor(seq int64) SQLiteOption {
	return func(s *SQLite) {
		s.start = &seq
	}
}

// SQLite is a Channel backed by the broadcasts table of a shared database.
//
// Post appends a row stamped with this endpoint's origin. Poll reads rows past
// the cursor written by other origins in seq order and delivers them. The
// cursor starts at the newest row present when the endpoint is opened, so
// history is never replayed.
type SQLite struct {
	db       *sql.DB
	name     string
	origin   string
	interval time.Duration
	subs     handlers
	start    *int64

	mu     sync.Mutex
	cursor int64
	closed bool
}

var _ Channel = (*SQLite)(nil)

// OpenSQLite opens an endpoint on the named channel using db. The database
// must carry the broadcasts table (see package storage).
func OpenSQLite(ctx context.Context, db *sql.DB, name string, opts ...SQLiteOption) (*SQLite, error) {
	s := &SQLite{
		db:       db,
		name:     name,
		origin:   NewOrigin(),
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.start != nil {
		s.cursor = *s.start
		return s, nil
	}
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM broadcasts WHERE channel = ?`, name,
	).Scan(&s.cursor)
	if err != nil {
		return nil, fmt.Errorf("open channel %q: %w", name, err)
	}
	return s, nil
}

func (s *SQLite) Name() string   { return s.name }
func (s *SQLite) Origin() string { return s.origin }

// Cursor returns the seq of the last delivered row.
func (s *SQLite) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Post appends payload to the broadcast log.
func (s *SQLite) Post(payload string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	_, err := s.db.Exec(
		`INSERT INTO broadcasts (channel, origin, payload) VALUES (?, ?, ?)`,
		s.name, s.origin, payload,
	)
	if err != nil {
		return fmt.Errorf("post on %q: %w", s.name, err)
	}
	return nil
}

func (s *SQLite) Subscribe(fn Handler) func() {
	return s.subs.add(fn)
}

// Poll delivers every pending broadcast from other origins and returns how
// many were delivered.
func (s *SQLite) Poll(ctx context.Context) (int, error) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, payload FROM broadcasts
		WHERE channel = ? AND seq > ? AND origin != ?
		ORDER BY seq ASC
	`, s.name, cursor, s.origin)
	if err != nil {
		return 0, fmt.Errorf("poll %q: %w", s.name, err)
	}

	type row struct {
		seq     int64
		payload string
	}
	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.seq, &r.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("poll %q: scan: %w", s.name, err)
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("poll %q: %w", s.name, err)
	}
	rows.Close()

	// Deliver after the rows are released: handlers may post, and the pool
	// holds a single connection.
	for _, r := range pending {
		s.subs.deliver(s.name, r.payload)
		s.mu.Lock()
		s.cursor = r.seq
		s.mu.Unlock()
	}
	return len(pending), nil
}

// Listen polls until ctx is cancelled or the endpoint is closed. Poll errors
// are logged and retried on the next tick.
func (s *SQLite) Listen(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			if _, err := s.Poll(ctx); err != nil {
				slog.Warn("broadcast poll failed", "channel", s.name, "error", err)
			}
		}
	}
}

// Close stops delivery. The shared database is not closed.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
