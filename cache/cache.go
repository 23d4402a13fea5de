// Package cache stores acquisition results keyed by normalized URL.
//
// Two requests for the same logical page (differing only in fragment or
// query string) hit the same row, so repeated crawls of a page skip the
// whole fetch chain. Only successful acquisitions are cached; placeholder
// records would otherwise pin a transient failure.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one cached acquisition.
type Record struct {
	ID            string
	URL           string // normalized URL, the cache key
	Title         string
	Description   string
	PublishedDate string
	Text          string
	ContentLength int
	FetchedAt     int64 // unix milliseconds
}

const schema = `
CREATE TABLE IF NOT EXISTS acquisitions (
	id             TEXT NOT NULL,
	url            TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL,
	published_date TEXT NOT NULL,
	text           TEXT NOT NULL,
	content_length INTEGER NOT NULL,
	fetched_at     INTEGER NOT NULL
);
`

// Store is the SQLite-backed acquisition cache. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path, creating parent
// directories and applying WAL pragmas.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the cached record for a normalized URL, or nil on a miss.
func (s *Store) Get(ctx context.Context, normURL string) (*Record, error) {
	r := &Record{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, url, title, description, published_date, text, content_length, fetched_at
		FROM acquisitions WHERE url = ?`, normURL).
		Scan(&r.ID, &r.URL, &r.Title, &r.Description, &r.PublishedDate,
			&r.Text, &r.ContentLength, &r.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get: %w", err)
	}
	return r, nil
}

// Put stores a record, replacing any previous crawl of the same URL.
func (s *Store) Put(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FetchedAt == 0 {
		r.FetchedAt = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acquisitions
			(id, url, title, description, published_date, text, content_length, fetched_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(url) DO UPDATE SET
			id = excluded.id,
			title = excluded.title,
			description = excluded.description,
			published_date = excluded.published_date,
			text = excluded.text,
			content_length = excluded.content_length,
			fetched_at = excluded.fetched_at`,
		r.ID, r.URL, r.Title, r.Description, r.PublishedDate,
		r.Text, r.ContentLength, r.FetchedAt)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Prune deletes records older than maxAge. Returns the number removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM acquisitions WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
