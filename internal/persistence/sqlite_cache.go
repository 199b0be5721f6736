package persistence

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteCache is a Cache backed by a single SQLite table.
//
// It expects an *sql.DB opened with the "sqlite" driver from
// modernc.org/sqlite. OpenSQLiteCache does that for a file path.
type SQLiteCache struct {
	db     *sql.DB
	ownsDB bool
}

var _ Cache = (*SQLiteCache)(nil)

// NewSQLiteCache initializes the schema in db and returns a cache on top of
// it. The caller keeps ownership of db.
func NewSQLiteCache(db *sql.DB) (*SQLiteCache, error) {
	c := &SQLiteCache{db: db}
	if err := c.initSchema(); err != nil {
		return nil, cacheErr("init sqlite schema", "", err)
	}
	return c, nil
}

// OpenSQLiteCache opens (or creates) the database at path. Use ":memory:"
// for a throwaway cache.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cacheErr("open sqlite", "", err)
	}
	// A :memory: database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	c, err := NewSQLiteCache(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

func (c *SQLiteCache) initSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	)
	return err
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cacheErr("get", key, err)
	}
	return value, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return cacheErr("set", key, err)
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return cacheErr("delete", key, err)
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return cacheErr("clear", "", err)
}

// Close closes the database if the cache opened it.
func (c *SQLiteCache) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}
