package persistence

import (
	"context"
	"encoding/json"
	"fmt"
)

// Versioned stores every value in an envelope tagged with a version:
//
//	{"version":3,"value":"..."}
//
// An entry written under another version, or one that does not decode as an
// envelope, reads as absent. Such entries are left in place and replaced by
// the next Set, so bumping the version re-provisions every key without a
// migration.
type Versioned struct {
	inner   Cache
	version int
}

var _ Cache = (*Versioned)(nil)

type envelope struct {
	Version int    `json:"version"`
	Value   string `json:"value"`
}

func NewVersioned(inner Cache, version int) *Versioned {
	return &Versioned{inner: inner, version: version}
}

// Version returns the tag written into new entries.
func (v *Versioned) Version() int { return v.version }

// Inner returns the wrapped cache.
func (v *Versioned) Inner() Cache { return v.inner }

func (v *Versioned) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := v.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", false, nil
	}
	if env.Version != v.version {
		return "", false, nil
	}
	return env.Value, true, nil
}

func (v *Versioned) Set(ctx context.Context, key, value string) error {
	data, err := json.Marshal(envelope{Version: v.version, Value: value})
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", ErrCache, key, err)
	}
	return v.inner.Set(ctx, key, string(data))
}

func (v *Versioned) Delete(ctx context.Context, key string) error {
	return v.inner.Delete(ctx, key)
}

func (v *Versioned) Clear(ctx context.Context) error {
	return v.inner.Clear(ctx)
}

func (v *Versioned) Close() error {
	return v.inner.Close()
}
