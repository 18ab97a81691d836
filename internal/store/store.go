// Package store persists the last commanded channel duty cycles and PWM
// frequency in SQLite so they can be restored after a restart.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions = 0o750
	busyTimeoutMS  = 5000
	pingTimeout    = 5 * time.Second

	keyFrequency = "frequency_hz"
)

var ErrClosed = errors.New("store: closed")

const schema = `
CREATE TABLE IF NOT EXISTS channel_state (
	channel    INTEGER PRIMARY KEY CHECK (channel >= 0),
	duty       INTEGER NOT NULL CHECK (duty >= 0 AND duty <= 65535),
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS device_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// State is what was last written through the store. Channels never set are
// absent from Duties; FrequencyHz is 0 when never set.
type State struct {
	Duties      map[int]int
	FrequencyHz int
}

// Store wraps a SQLite database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("store: creating directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeoutMS)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One writer; also keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) stamp() string { return s.now().UTC().Format(time.RFC3339Nano) }

// SaveDuty records the duty cycle last commanded on channel.
func (s *Store) SaveDuty(ctx context.Context, channel, duty int) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_state (channel, duty, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(channel) DO UPDATE SET duty = excluded.duty, updated_at = excluded.updated_at`,
		channel, duty, s.stamp())
	if err != nil {
		return fmt.Errorf("store: save duty channel %d: %w", channel, err)
	}
	return nil
}

// SaveDuties records several channels in one transaction.
func (s *Store) SaveDuties(ctx context.Context, duties map[int]int) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO channel_state (channel, duty, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(channel) DO UPDATE SET duty = excluded.duty, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	ts := s.stamp()
	for ch, duty := range duties {
		if _, err := stmt.ExecContext(ctx, ch, duty, ts); err != nil {
			return fmt.Errorf("store: save duty channel %d: %w", ch, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// SaveFrequency records the PWM frequency last commanded.
func (s *Store) SaveFrequency(ctx context.Context, hz int) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		keyFrequency, strconv.Itoa(hz), s.stamp())
	if err != nil {
		return fmt.Errorf("store: save frequency: %w", err)
	}
	return nil
}

// Clear forgets every channel duty. The frequency is kept.
func (s *Store) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM channel_state`); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Load returns the persisted state.
func (s *Store) Load(ctx context.Context) (State, error) {
	if s == nil || s.db == nil {
		return State{}, ErrClosed
	}
	st := State{Duties: make(map[int]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT channel, duty FROM channel_state ORDER BY channel`)
	if err != nil {
		return State{}, fmt.Errorf("store: load channels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ch, duty int
		if err := rows.Scan(&ch, &duty); err != nil {
			return State{}, fmt.Errorf("store: scan channel: %w", err)
		}
		st.Duties[ch] = duty
	}
	if err := rows.Err(); err != nil {
		return State{}, fmt.Errorf("store: load channels: %w", err)
	}

	var v string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM device_state WHERE key = ?`, keyFrequency).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return State{}, fmt.Errorf("store: load frequency: %w", err)
	default:
		hz, err := strconv.Atoi(v)
		if err != nil {
			return State{}, fmt.Errorf("store: frequency %q: %w", v, err)
		}
		st.FrequencyHz = hz
	}
	return st, nil
}
