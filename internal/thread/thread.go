package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/pkg/api"
)

// IntentState records how far thread creation got.
type IntentState string

const (
	// IntentRequested is written before any remote call.
	IntentRequested IntentState = "requested"
	// IntentConfirmed is written once the thread and its collection exist.
	IntentConfirmed IntentState = "confirmed"
)

// Intent is the cached record of a user's thread.
type Intent struct {
	ThreadID api.ThreadID `json:"thread_id"`
	State    IntentState  `json:"state"`
}

// CacheKey returns the cache key of the thread intent of identity.
func CacheKey(identity string) string { return identity + "-user_thread" }

// Provisioner creates the per-user thread and its collection exactly once.
type Provisioner struct {
	Cache      persistence.Cache
	DB         api.ThreadDB
	Collection string
	Schema     []byte

	// NewID defaults to api.NewThreadID.
	NewID  func() api.ThreadID
	Logger *slog.Logger
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// ObtainThread returns the thread of identity. A confirmed thread is
// returned without any remote call. Otherwise the thread and collection are
// created, and an interrupted earlier attempt is completed.
func (p *Provisioner) ObtainThread(ctx context.Context, identity string, sc api.SessionContext) (api.ThreadID, error) {
	key := CacheKey(identity)

	intent, ok, err := p.load(ctx, key)
	if err != nil {
		return "", err
	}
	if ok && intent.State == IntentConfirmed {
		return intent.ThreadID, nil
	}

	resuming := ok
	if !ok {
		newID := p.NewID
		if newID == nil {
			newID = api.NewThreadID
		}
		intent = Intent{ThreadID: newID(), State: IntentRequested}
		if err := p.store(ctx, key, intent); err != nil {
			return "", err
		}
	} else {
		p.logger().InfoContext(ctx, "thread_intent_resumed", slog.String("thread_id", intent.ThreadID.String()))
	}

	if err := p.create(ctx, sc, intent.ThreadID, resuming); err != nil {
		return "", err
	}

	intent.State = IntentConfirmed
	if err := p.store(ctx, key, intent); err != nil {
		return "", err
	}
	return intent.ThreadID, nil
}

func (p *Provisioner) create(ctx context.Context, sc api.SessionContext, id api.ThreadID, resuming bool) error {
	scoped := sc.WithThread(id)
	if err := p.DB.NewDB(ctx, scoped, id); err != nil {
		if !resuming || !errors.Is(err, api.ErrAlreadyExists) {
			return fmt.Errorf("new db %s: %w", id, err)
		}
	}
	if err := p.DB.NewCollection(ctx, scoped, id, p.Collection, p.Schema); err != nil {
		if !resuming || !errors.Is(err, api.ErrAlreadyExists) {
			return fmt.Errorf("new collection %s: %w", p.Collection, err)
		}
	}
	return nil
}

// load reads the intent record. An unreadable record counts as absent.
func (p *Provisioner) load(ctx context.Context, key string) (Intent, bool, error) {
	raw, ok, err := p.Cache.Get(ctx, key)
	if err != nil || !ok {
		return Intent{}, false, err
	}
	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		p.logger().WarnContext(ctx, "thread_intent_unreadable", slog.Any("error", err))
		return Intent{}, false, nil
	}
	if _, err := api.ParseThreadID(intent.ThreadID.String()); err != nil {
		p.logger().WarnContext(ctx, "thread_intent_unreadable", slog.Any("error", err))
		return Intent{}, false, nil
	}
	switch intent.State {
	case IntentRequested, IntentConfirmed:
		return intent, true, nil
	default:
		return Intent{}, false, nil
	}
}

func (p *Provisioner) store(ctx context.Context, key string, intent Intent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode thread intent: %w", err)
	}
	return p.Cache.Set(ctx, key, string(data))
}
