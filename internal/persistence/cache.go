package persistence

import (
	"context"
	"fmt"

	"github.com/petrijr/hubcheck/pkg/api"
)

// ErrCache is wrapped by every error a Cache returns.
var ErrCache = api.ErrCache

// Cache is a flat string key/value store that survives process restarts.
//
// Values never expire. A missing key is reported with ok=false and a nil
// error; err is reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by this cache.
	Clear(ctx context.Context) error
	Close() error
}

func cacheErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if key == "" {
		return fmt.Errorf("%w: %s: %v", ErrCache, op, err)
	}
	return fmt.Errorf("%w: %s %q: %v", ErrCache, op, key, err)
}
