// Package store caches compiled scripts keyed by the root task identity.
// Identical trees compile to identical text, so the identity is a safe cache
// key across runs.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed script cache fronted by an in-process LRU.
type Store struct {
	db  *sql.DB
	mem *lru.Cache[string, string]
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// Entry describes one cached script.
type Entry struct {
	RootID    string
	QName     string
	Size      int64
	CreatedAt time.Time
}

// Open opens (creating if needed) the cache at path. memEntries bounds the
// in-process layer; values below 1 fall back to a small default.
func Open(path string, memEntries int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("mkdir cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if memEntries < 1 {
		memEntries = 16
	}
	mem, err := lru.New[string, string](memEntries)
	if err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, mem: mem}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// Ping checks the underlying database.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

// Put stores a compiled script under its root identity.
func (s *Store) Put(ctx context.Context, rootID, qname, script string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scripts (root_id, qname, script, size, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(root_id) DO UPDATE SET
		   qname = excluded.qname,
		   script = excluded.script,
		   size = excluded.size,
		   created_at = excluded.created_at`,
		rootID, qname, script, len(script), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put script: %w", err)
	}
	s.mem.Add(rootID, script)
	return nil
}

// Get returns the cached script for rootID, if any.
func (s *Store) Get(ctx context.Context, rootID string) (string, bool, error) {
	if script, ok := s.mem.Get(rootID); ok {
		return script, true, nil
	}
	var script string
	err := s.db.QueryRowContext(ctx,
		`SELECT script FROM scripts WHERE root_id = ?`, rootID).Scan(&script)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get script: %w", err)
	}
	s.mem.Add(rootID, script)
	return script, true, nil
}

// List returns all cached entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT root_id, qname, size, created_at FROM scripts ORDER BY created_at DESC, root_id`)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.RootID, &e.QName, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scan script row: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes every cached script.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scripts`); err != nil {
		return fmt.Errorf("clear scripts: %w", err)
	}
	s.mem.Purge()
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
