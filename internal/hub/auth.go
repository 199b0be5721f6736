package hub

import (
	"context"
	"crypto/hmac"
	"database/sql"
	"errors"
	"fmt"

	"github.com/petrijr/hubcheck/pkg/api"
)

// checkKey verifies the developer key signature carried by sc.
func (h *Hub) checkKey(sc api.SessionContext) error {
	secret, ok := h.secrets[sc.APIKey]
	if !ok || sc.APIKey == "" {
		return fmt.Errorf("%w: unknown api key", api.ErrUnauthorized)
	}
	want := api.SignAPIMessage(secret, sc.APISigMsg)
	if !hmac.Equal([]byte(want), []byte(sc.APISig)) {
		return fmt.Errorf("%w: bad api signature", api.ErrUnauthorized)
	}
	if sc.Expired(h.now()) {
		return fmt.Errorf("%w: api signature expired", api.ErrUnauthorized)
	}
	return nil
}

// owner authenticates sc and returns the public key its token is bound to.
func (h *Hub) owner(ctx context.Context, sc api.SessionContext) (string, error) {
	if err := h.checkKey(sc); err != nil {
		return "", err
	}
	if sc.Token == "" {
		return "", fmt.Errorf("%w: missing token", api.ErrUnauthorized)
	}
	var pub string
	err := h.db.QueryRowContext(ctx, `SELECT public_key FROM tokens WHERE token = ?`, sc.Token).Scan(&pub)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: unknown token", api.ErrUnauthorized)
	}
	if err != nil {
		return "", err
	}
	return pub, nil
}
