package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestSQLiteCacheSuite(t *testing.T) {
	suite.Run(t, &CacheSuite{newCache: func() Cache {
		c, err := OpenSQLiteCache(":memory:")
		require.NoError(t, err)
		return c
	}})
}

func TestSQLiteCache_SharedDBStaysOpen(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	c, err := NewSQLiteCache(db)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// The cache did not open db, so closing it leaves db usable.
	require.NoError(t, db.Ping())
}

func TestSQLiteCache_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c1, err := OpenSQLiteCache(path)
	require.NoError(t, err)
	require.NoError(t, c1.Set(ctx, "identity", "bseed"))
	require.NoError(t, c1.Close())

	c2, err := OpenSQLiteCache(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c2.Close() })

	v, ok, err := c2.Get(ctx, "identity")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bseed", v)
}
