package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/pkg/api"
)

// CacheKey is where the serialized identity is stored.
const CacheKey = "identity"

// Manager hands out the single identity of an installation, generating it
// on first use.
type Manager struct {
	cache    persistence.Cache
	provider api.IdentityProvider
	logger   *slog.Logger
}

// NewManager returns a Manager. A nil provider selects Ed25519Provider and a
// nil logger selects slog.Default().
func NewManager(cache persistence.Cache, provider api.IdentityProvider, logger *slog.Logger) *Manager {
	if provider == nil {
		provider = Ed25519Provider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cache: cache, provider: provider, logger: logger}
}

// ObtainIdentity returns the cached identity, or generates and persists a
// new one when the cache holds none.
func (m *Manager) ObtainIdentity(ctx context.Context) (api.Identity, error) {
	s, ok, err := m.cache.Get(ctx, CacheKey)
	if err != nil {
		return nil, err
	}
	if ok {
		id, err := m.provider.FromString(s)
		if err != nil {
			return nil, fmt.Errorf("restore cached identity: %w", err)
		}
		return id, nil
	}

	id, err := m.provider.FromRandom()
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, CacheKey, id.String()); err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "identity_created", slog.String("public_key", id.Public()))
	return id, nil
}
