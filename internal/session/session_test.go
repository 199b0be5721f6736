package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/hubcheck/internal/identity"
	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/pkg/api"
)

type fakeClient struct {
	calls int
	err   error
}

func (f *fakeClient) GetToken(ctx context.Context, sc api.SessionContext, id api.Identity) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if sc.APISig == "" {
		return "", api.ErrUnauthorized
	}
	return "tok-" + id.Public()[:8], nil
}

var creds = api.UserKey{Key: "dev-key", Secret: "dev-secret", Type: api.KeyTypeAccount}

func newProvider(t *testing.T, now time.Time) (*Provider, *fakeClient, persistence.Cache) {
	t.Helper()
	cache := persistence.NewVersioned(persistence.NewMemoryCache(), 1)
	client := &fakeClient{}
	p := &Provider{
		Cache:    cache,
		Client:   client,
		Endpoint: "local://hub",
		Now:      func() time.Time { return now },
	}
	return p, client, cache
}

func newIdentity(t *testing.T) api.Identity {
	t.Helper()
	id, err := identity.Ed25519Provider{}.FromRandom()
	require.NoError(t, err)
	return id
}

func TestNewContext_SignsWithDefaultTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, _, _ := newProvider(t, now)

	sc := p.NewContext(creds)

	assert.Equal(t, "local://hub", sc.Host)
	assert.Equal(t, "dev-key", sc.APIKey)
	assert.Equal(t, api.SignAPIMessage("dev-secret", sc.APISigMsg), sc.APISig)

	exp, err := sc.SignatureExpiry()
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultSignatureTTL), exp)
}

func TestObtainContext_ReusesUnexpiredContext(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, _, _ := newProvider(t, now)
	id := newIdentity(t)

	sc := p.NewContext(creds).WithToken("tok")
	require.NoError(t, p.SaveContext(ctx, id.String(), sc))

	got, err := p.ObtainContext(ctx, id.String())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sc, *got)
}

func TestObtainContext_ExpiredContextIsAbsentButKept(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, _, cache := newProvider(t, now)
	id := newIdentity(t)

	require.NoError(t, p.SaveContext(ctx, id.String(), p.NewContext(creds)))

	p.Now = func() time.Time { return now.Add(DefaultSignatureTTL + time.Second) }
	got, err := p.ObtainContext(ctx, id.String())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, ok, err := cache.Get(ctx, ContextKey(id.String()))
	require.NoError(t, err)
	assert.True(t, ok, "expired context must not be deleted")
}

func TestObtainContext_ExpiryBoundaryIsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, _, _ := newProvider(t, now)
	id := newIdentity(t)

	require.NoError(t, p.SaveContext(ctx, id.String(), p.NewContext(creds)))

	p.Now = func() time.Time { return now.Add(DefaultSignatureTTL) }
	got, err := p.ObtainContext(ctx, id.String())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestObtainContext_MissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	p, _, cache := newProvider(t, time.Now())
	id := newIdentity(t)

	got, err := p.ObtainContext(ctx, id.String())
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, ContextKey(id.String()), "{broken"))
	got, err = p.ObtainContext(ctx, id.String())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestObtainContext_ScopedByIdentity(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newProvider(t, time.Now())
	a, b := newIdentity(t), newIdentity(t)

	require.NoError(t, p.SaveContext(ctx, a.String(), p.NewContext(creds)))

	got, err := p.ObtainContext(ctx, b.String())
	require.NoError(t, err)
	assert.Nil(t, got, "context of one identity must not be visible to another")
}

func TestObtainToken_RequestsOnceThenUsesCache(t *testing.T) {
	ctx := context.Background()
	p, client, _ := newProvider(t, time.Now())
	id := newIdentity(t)

	sc1, tok1, err := p.ObtainToken(ctx, id, p.NewContext(creds))
	require.NoError(t, err)
	assert.Equal(t, tok1, sc1.Token)

	sc2, tok2, err := p.ObtainToken(ctx, id, p.NewContext(creds))
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, tok1, sc2.Token)
	assert.Equal(t, 1, client.calls)
}

func TestObtainToken_ClientErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	p, client, cache := newProvider(t, time.Now())
	id := newIdentity(t)
	client.err = errors.New("connection refused")

	_, _, err := p.ObtainToken(ctx, id, p.NewContext(creds))
	require.Error(t, err)
	assert.Equal(t, api.KindTransport, api.Classify(err))

	_, ok, err := cache.Get(ctx, TokenKey(id.String()))
	require.NoError(t, err)
	assert.False(t, ok)
}
