package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/pkg/api"
)

// DefaultSignatureTTL is how long a freshly signed context stays valid.
const DefaultSignatureTTL = 30 * time.Minute

// ContextKey returns the cache key of the session context of identity.
func ContextKey(identity string) string { return identity + "-context" }

// TokenKey returns the cache key of the API token of identity.
func TokenKey(identity string) string { return identity + "-token" }

// Provider restores and creates authenticated session contexts.
type Provider struct {
	Cache    persistence.Cache
	Client   api.SessionClient
	Endpoint string

	// SignatureTTL defaults to DefaultSignatureTTL.
	SignatureTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (p *Provider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Provider) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// ObtainContext returns the cached context of identity if its signature is
// still valid. Missing, expired and unparsable entries all yield nil and are
// left in the cache.
func (p *Provider) ObtainContext(ctx context.Context, identity string) (*api.SessionContext, error) {
	raw, ok, err := p.Cache.Get(ctx, ContextKey(identity))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	sc, err := api.SessionContextFromJSON([]byte(raw), p.Endpoint)
	if err != nil {
		p.logger().WarnContext(ctx, "session_context_unreadable", slog.Any("error", err))
		return nil, nil
	}
	if sc.Expired(p.now()) {
		p.logger().DebugContext(ctx, "session_context_expired", slog.String("expiry", sc.APISigMsg))
		return nil, nil
	}
	return &sc, nil
}

// NewContext returns a context for the configured endpoint signed with creds.
func (p *Provider) NewContext(creds api.UserKey) api.SessionContext {
	ttl := p.SignatureTTL
	if ttl <= 0 {
		ttl = DefaultSignatureTTL
	}
	return api.NewSessionContext(p.Endpoint).WithUserKey(creds, p.now().Add(ttl))
}

// ObtainToken attaches the API token of id to sc, requesting and caching a
// new one when none is cached.
func (p *Provider) ObtainToken(ctx context.Context, id api.Identity, sc api.SessionContext) (api.SessionContext, string, error) {
	key := TokenKey(id.String())
	token, ok, err := p.Cache.Get(ctx, key)
	if err != nil {
		return sc, "", err
	}
	if ok && token != "" {
		return sc.WithToken(token), token, nil
	}

	token, err = p.Client.GetToken(ctx, sc, id)
	if err != nil {
		return sc, "", fmt.Errorf("get token: %w", err)
	}
	if err := p.Cache.Set(ctx, key, token); err != nil {
		return sc, "", err
	}
	return sc.WithToken(token), token, nil
}

// SaveContext persists sc under the identity-scoped context key.
func (p *Provider) SaveContext(ctx context.Context, identity string, sc api.SessionContext) error {
	data, err := sc.ToJSON()
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	return p.Cache.Set(ctx, ContextKey(identity), string(data))
}
