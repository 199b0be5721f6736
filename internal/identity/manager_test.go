package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/pkg/api"
)

type countingProvider struct {
	Ed25519Provider
	generated int
}

func (p *countingProvider) FromRandom() (api.Identity, error) {
	p.generated++
	return p.Ed25519Provider.FromRandom()
}

func TestManager_ObtainIdentityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cache := persistence.NewVersioned(persistence.NewMemoryCache(), 1)
	provider := &countingProvider{}
	m := NewManager(cache, provider, nil)

	first, err := m.ObtainIdentity(ctx)
	require.NoError(t, err)
	second, err := m.ObtainIdentity(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, 1, provider.generated)

	stored, ok, err := cache.Get(ctx, CacheKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.String(), stored)
}

func TestManager_SurvivesNewManagerOnSameCache(t *testing.T) {
	ctx := context.Background()
	cache := persistence.NewMemoryCache()

	first, err := NewManager(cache, nil, nil).ObtainIdentity(ctx)
	require.NoError(t, err)
	second, err := NewManager(cache, nil, nil).ObtainIdentity(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.String(), second.String())
}

func TestManager_VersionBumpGeneratesNewIdentity(t *testing.T) {
	ctx := context.Background()
	inner := persistence.NewMemoryCache()

	v1, err := NewManager(persistence.NewVersioned(inner, 1), nil, nil).ObtainIdentity(ctx)
	require.NoError(t, err)
	v2, err := NewManager(persistence.NewVersioned(inner, 2), nil, nil).ObtainIdentity(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, v1.String(), v2.String())
}

func TestManager_CorruptCachedIdentityFails(t *testing.T) {
	ctx := context.Background()
	cache := persistence.NewMemoryCache()
	require.NoError(t, cache.Set(ctx, CacheKey, "garbage"))

	_, err := NewManager(cache, nil, nil).ObtainIdentity(ctx)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

type brokenCache struct {
	*persistence.MemoryCache
}

func (brokenCache) Set(ctx context.Context, key, value string) error {
	return errors.Join(persistence.ErrCache, errors.New("read-only"))
}

func TestManager_CacheWriteFailureIsReported(t *testing.T) {
	m := NewManager(brokenCache{persistence.NewMemoryCache()}, nil, nil)
	_, err := m.ObtainIdentity(context.Background())
	assert.ErrorIs(t, err, persistence.ErrCache)
}
