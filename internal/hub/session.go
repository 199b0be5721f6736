package hub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/petrijr/hubcheck/internal/identity"
	"github.com/petrijr/hubcheck/pkg/api"
)

const challengeSize = 32

// GetToken authenticates id with a signed challenge and returns the token
// bound to its public key, issuing one on first contact.
func (h *Hub) GetToken(ctx context.Context, sc api.SessionContext, id api.Identity) (string, error) {
	if err := h.checkKey(sc); err != nil {
		return "", err
	}

	challenge := make([]byte, challengeSize)
	if _, err := io.ReadFull(h.rand, challenge); err != nil {
		return "", fmt.Errorf("challenge: %w", err)
	}
	sig, err := id.Sign(challenge)
	if err != nil {
		return "", fmt.Errorf("sign challenge: %w", err)
	}
	pub := id.Public()
	if err := identity.Verify(pub, challenge, sig); err != nil {
		return "", err
	}

	var token string
	err = h.db.QueryRowContext(ctx, `SELECT token FROM tokens WHERE public_key = ?`, pub).Scan(&token)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	token, err = h.randomKey(24)
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO tokens (token, public_key, api_key, created_at) VALUES (?, ?, ?, ?)`,
		token, pub, sc.APIKey, h.now().Unix(),
	)
	if err != nil {
		return "", err
	}
	h.logger.DebugContext(ctx, "hub_token_issued", slog.String("public_key", pub))
	return token, nil
}
