package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/petrijr/hubcheck/pkg/api"
)

// multibase base32 lower-case, no padding, with the "b" prefix.
var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

const multibasePrefix = "b"

var (
	ErrInvalidIdentity  = errors.New("invalid identity string")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

func encode(b []byte) string {
	return multibasePrefix + strings.ToLower(b32.EncodeToString(b))
}

func decode(s string) ([]byte, error) {
	if !strings.HasPrefix(s, multibasePrefix) {
		return nil, fmt.Errorf("missing %q prefix", multibasePrefix)
	}
	return b32.DecodeString(strings.ToUpper(strings.TrimPrefix(s, multibasePrefix)))
}

// Ed25519Provider creates ed25519 identities.
type Ed25519Provider struct {
	// Rand is the entropy source; crypto/rand.Reader when nil.
	Rand io.Reader
}

var _ api.IdentityProvider = Ed25519Provider{}

func (p Ed25519Provider) FromRandom() (api.Identity, error) {
	r := p.Rand
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return newEd25519Identity(seed), nil
}

func (p Ed25519Provider) FromString(s string) (api.Identity, error) {
	seed, err := decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed has %d bytes", ErrInvalidIdentity, len(seed))
	}
	return newEd25519Identity(seed), nil
}

type ed25519Identity struct {
	priv ed25519.PrivateKey
}

func newEd25519Identity(seed []byte) *ed25519Identity {
	return &ed25519Identity{priv: ed25519.NewKeyFromSeed(seed)}
}

func (i *ed25519Identity) String() string {
	return encode(i.priv.Seed())
}

func (i *ed25519Identity) Public() string {
	return encode(i.priv.Public().(ed25519.PublicKey))
}

func (i *ed25519Identity) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(i.priv, msg), nil
}

// Verify checks sig over msg against a public key in the form returned by
// Identity.Public.
func Verify(public string, msg, sig []byte) error {
	key, err := decode(public)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: key has %d bytes", ErrInvalidPublicKey, len(key))
	}
	if !ed25519.Verify(ed25519.PublicKey(key), msg, sig) {
		return fmt.Errorf("%w: signature does not verify", api.ErrUnauthorized)
	}
	return nil
}
