// Package cache persists generated programs keyed by the content hash of
// the syntax tree they were generated from.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("invmc.cache")

// ErrMiss is returned by Get when no entry exists for a hash.
var ErrMiss = errors.New("cache miss")

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	hash       TEXT PRIMARY KEY,
	assembly   TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
)`

// Cache is a SQLite-backed map from tree hash to generated assembly.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init %s: %w", path, err)
	}
	log.Debugf("opened %s", path)
	return &Cache{db: db, path: path}, nil
}

// Get returns the assembly stored for hash, or ErrMiss.
func (c *Cache) Get(ctx context.Context, hash [32]byte) (string, error) {
	var asm string
	err := c.db.QueryRowContext(ctx,
		`SELECT assembly FROM programs WHERE hash = ?`, key(hash)).Scan(&asm)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debugf("miss %s", key(hash))
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache: get %s: %w", key(hash), err)
	}
	log.Debugf("hit %s", key(hash))
	return asm, nil
}

// Put stores asm under hash, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, hash [32]byte, asm string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO programs (hash, assembly) VALUES (?, ?)
		 ON CONFLICT(hash) DO UPDATE SET assembly = excluded.assembly`,
		key(hash), asm)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key(hash), err)
	}
	return nil
}

// Len returns the number of cached programs.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM programs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func key(hash [32]byte) string {
	return hex.EncodeToString(hash[:])
}
