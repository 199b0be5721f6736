package api

import (
	"context"
	"io"
	"time"
)

// Identity is a keypair-derived handle representing a user or device.
type Identity interface {
	// String returns the serialized (private) form, suitable for FromString.
	String() string
	// Public returns the public key in its string form.
	Public() string
	// Sign signs msg with the private key.
	Sign(msg []byte) ([]byte, error)
}

// IdentityProvider creates and restores identities.
type IdentityProvider interface {
	FromRandom() (Identity, error)
	FromString(s string) (Identity, error)
}

// SessionClient is the remote session surface.
type SessionClient interface {
	// GetToken requests an API token for id, authorized by the developer
	// credentials carried in sc. The caller attaches the returned token to
	// its context with WithToken.
	GetToken(ctx context.Context, sc SessionContext, id Identity) (string, error)
}

// ThreadDB is the remote thread-database surface.
type ThreadDB interface {
	NewDB(ctx context.Context, sc SessionContext, id ThreadID) error
	NewCollection(ctx context.Context, sc SessionContext, id ThreadID, name string, schema []byte) error
	Create(ctx context.Context, sc SessionContext, id ThreadID, collection string, records []any) ([]string, error)
	Find(ctx context.Context, sc SessionContext, id ThreadID, collection string, q Query) ([]Instance, error)
	Delete(ctx context.Context, sc SessionContext, id ThreadID, collection string, ids []string) error
}

// Root describes a bucket visible to a session.
type Root struct {
	Key       string
	Name      string
	CreatedAt time.Time
}

// PushResult is returned by Buckets.PushPath.
type PushResult struct {
	Path string
	Size int64
}

// Buckets is the remote object-storage surface.
type Buckets interface {
	List(ctx context.Context, sc SessionContext) ([]Root, error)
	Init(ctx context.Context, sc SessionContext, name string) (Root, error)
	// PushPath writes content at path inside the bucket, replacing whatever
	// was stored there before.
	PushPath(ctx context.Context, sc SessionContext, key, path string, content io.Reader) (PushResult, error)
}
