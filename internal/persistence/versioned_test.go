package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestVersionedSuite(t *testing.T) {
	suite.Run(t, &CacheSuite{newCache: func() Cache {
		return NewVersioned(NewMemoryCache(), 1)
	}})
}

func TestVersioned_WritesEnvelope(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryCache()
	v := NewVersioned(inner, 3)

	require.NoError(t, v.Set(ctx, "identity", "bseed"))

	raw, ok, err := inner.Get(ctx, "identity")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":3,"value":"bseed"}`, raw)
}

func TestVersioned_OtherVersionReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryCache()

	require.NoError(t, NewVersioned(inner, 1).Set(ctx, "identity", "old"))

	v2 := NewVersioned(inner, 2)
	_, ok, err := v2.Get(ctx, "identity")
	require.NoError(t, err)
	assert.False(t, ok)

	// The stale entry is left in place.
	_, ok, err = inner.Get(ctx, "identity")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, v2.Set(ctx, "identity", "new"))
	got, ok, err := v2.Get(ctx, "identity")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestVersioned_UndecodableEntryReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryCache()
	require.NoError(t, inner.Set(ctx, "identity", "legacy-unwrapped-value"))

	_, ok, err := NewVersioned(inner, 1).Get(ctx, "identity")
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingCache struct {
	MemoryCache
	err error
}

func (f *failingCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, f.err
}

func TestVersioned_PropagatesBackendErrors(t *testing.T) {
	boom := cacheErr("get", "identity", errors.New("disk on fire"))
	v := NewVersioned(&failingCache{err: boom}, 1)

	_, _, err := v.Get(context.Background(), "identity")
	require.ErrorIs(t, err, ErrCache)
}
