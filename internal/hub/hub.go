// Package hub is a local, SQLite-backed stand-in for the remote hub. It
// implements the session, thread-database and bucket capabilities so the
// workflow can run end to end without a network.
package hub

import (
	"crypto/rand"
	"database/sql"
	"encoding/base32"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/petrijr/hubcheck/pkg/api"
)

// Options configures a Hub.
type Options struct {
	// Keys are the developer keys the hub accepts.
	Keys []api.UserKey
	// Now defaults to time.Now.
	Now func() time.Time
	// Rand defaults to crypto/rand.Reader.
	Rand   io.Reader
	Logger *slog.Logger
}

// Hub implements api.SessionClient, api.ThreadDB and api.Buckets.
type Hub struct {
	db     *sql.DB
	ownsDB bool

	secrets map[string]string
	now     func() time.Time
	rand    io.Reader
	logger  *slog.Logger

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

var (
	_ api.SessionClient = (*Hub)(nil)
	_ api.ThreadDB      = (*Hub)(nil)
	_ api.Buckets       = (*Hub)(nil)
)

// New initializes the hub schema in db. The caller keeps ownership of db.
func New(db *sql.DB, opts Options) (*Hub, error) {
	h := &Hub{
		db:      db,
		secrets: make(map[string]string, len(opts.Keys)),
		now:     opts.Now,
		rand:    opts.Rand,
		logger:  opts.Logger,
		schemas: make(map[string]*jsonschema.Schema),
	}
	for _, k := range opts.Keys {
		h.secrets[k.Key] = k.Secret
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.rand == nil {
		h.rand = rand.Reader
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if err := h.initSchema(); err != nil {
		return nil, fmt.Errorf("init hub schema: %w", err)
	}
	return h, nil
}

// Open opens (or creates) a hub database at path. ":memory:" gives a hub
// that lives as long as the returned value.
func Open(path string, opts Options) (*Hub, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open hub db: %w", err)
	}
	db.SetMaxOpenConns(1)
	h, err := New(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	h.ownsDB = true
	return h, nil
}

func (h *Hub) Close() error {
	if !h.ownsDB {
		return nil
	}
	return h.db.Close()
}

func (h *Hub) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS tokens (
			token TEXT PRIMARY KEY,
			public_key TEXT NOT NULL UNIQUE,
			api_key TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS collections (
			thread_id TEXT NOT NULL,
			name TEXT NOT NULL,
			schema TEXT NOT NULL,
			PRIMARY KEY (thread_id, name)
		);
		CREATE TABLE IF NOT EXISTS instances (
			thread_id TEXT NOT NULL,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			body TEXT NOT NULL,
			PRIMARY KEY (thread_id, collection, id)
		);
		CREATE TABLE IF NOT EXISTS buckets (
			key TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS bucket_files (
			bucket_key TEXT NOT NULL,
			path TEXT NOT NULL,
			content BLOB NOT NULL,
			PRIMARY KEY (bucket_key, path)
		);`,
	)
	return err
}

var keyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// randomKey returns a multibase-style base32 string of n random bytes.
func (h *Hub) randomKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(h.rand, b); err != nil {
		return "", err
	}
	return "b" + strings.ToLower(keyEncoding.EncodeToString(b)), nil
}
