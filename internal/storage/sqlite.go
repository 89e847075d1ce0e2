package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"invitation-site/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS guests (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	date TEXT NOT NULL
)`

// SQLiteStore keeps the guests collection in a SQLite database
type SQLiteStore struct {
	// mu orders writes with their snapshot broadcasts and with new subscriptions
	mu   sync.Mutex
	db   *sql.DB
	feed feed
}

// NewSQLiteStore opens (and if needed creates) the database at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Push inserts a guest under a new key and notifies subscribers
func (s *SQLiteStore) Push(ctx context.Context, guest models.Guest) (models.Guest, error) {
	if s.feed.isClosed() {
		return models.Guest{}, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	guest.ID = newID()
	if guest.Date.IsZero() {
		guest.Date = time.Now()
	}
	guest.Date = guest.Date.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guests (id, name, date) VALUES (?, ?, ?)`,
		guest.ID, guest.Name, guest.Date.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.Guest{}, fmt.Errorf("failed to insert guest: %w", err)
	}

	// The row is committed; the snapshot must not depend on the caller
	// still waiting.
	s.broadcast(context.WithoutCancel(ctx))
	return guest, nil
}

// Get returns the current collection
func (s *SQLiteStore) Get(ctx context.Context) (map[string]models.Guest, error) {
	if s.feed.isClosed() {
		return nil, ErrClosed
	}
	return s.load(ctx)
}

// Subscribe delivers the collection now and after every change
func (s *SQLiteStore) Subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guests, err := s.load(ctx)
	return s.feed.subscribe(ctx, Snapshot{Guests: guests, Err: err})
}

// Refresh re-reads the table, which another process may have written, and
// notifies subscribers
func (s *SQLiteStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcast(ctx)
}

// Close ends all subscriptions and closes the database
func (s *SQLiteStore) Close() error {
	s.feed.close()
	return s.db.Close()
}

func (s *SQLiteStore) broadcast(ctx context.Context) error {
	guests, err := s.load(ctx)
	s.feed.publish(Snapshot{Guests: guests, Err: err})
	return err
}

func (s *SQLiteStore) load(ctx context.Context) (map[string]models.Guest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, date FROM guests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guests: %w", err)
	}
	defer rows.Close()

	guests := make(map[string]models.Guest)
	for rows.Next() {
		var g models.Guest
		var date string
		if err := rows.Scan(&g.ID, &g.Name, &date); err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		if g.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return nil, fmt.Errorf("guest %s has invalid date %q: %w", g.ID, date, err)
		}
		guests[g.ID] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read guests: %w", err)
	}
	return guests, nil
}
