package hubcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/hubcheck/internal/config"
	"github.com/petrijr/hubcheck/internal/engine"
	"github.com/petrijr/hubcheck/internal/hub"
	"github.com/petrijr/hubcheck/internal/identity"
	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/internal/session"
	"github.com/petrijr/hubcheck/internal/thread"
	"github.com/petrijr/hubcheck/pkg/api"
)

// RunnerOptions holds the parts of a LocalRunner that do not come from the
// configuration file.
type RunnerOptions struct {
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time

	// Cache replaces the cache named by the config DSN. The runner does not
	// close a cache it did not open.
	Cache Cache
}

// LocalRunner bundles a cache, a SQLite-backed local hub and an Engine for
// running the workflow in a single process.
//
// Typical usage:
//
//	runner, err := hubcheck.NewLocalRunner(ctx, cfg, hubcheck.RunnerOptions{})
//	if err != nil { ... }
//	defer runner.Close()
//	err = runner.Engine.Run(ctx)
type LocalRunner struct {
	Engine *engine.Engine
	Cache  Cache
	Hub    *hub.Hub

	cfg       *config.Config
	ownsCache bool
}

// NewLocalRunner validates cfg and wires the runner together.
func NewLocalRunner(ctx context.Context, cfg *config.Config, opts RunnerOptions) (*LocalRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &LocalRunner{cfg: cfg, Cache: opts.Cache}
	if r.Cache == nil {
		cache, err := persistence.Open(ctx, cfg.Cache.DSN)
		if err != nil {
			return nil, err
		}
		r.Cache = cache
		r.ownsCache = true
	}

	creds := api.UserKey{Key: cfg.Hub.APIKey, Secret: cfg.Hub.APISecret}
	h, err := hub.Open(cfg.Hub.DBPath, hub.Options{
		Keys:   []api.UserKey{creds},
		Now:    opts.Now,
		Logger: logger,
	})
	if err != nil {
		_ = r.closeCache()
		return nil, err
	}
	r.Hub = h

	eng, err := engine.New(engine.Config{
		Cache:         r.Cache,
		CacheVersion:  cfg.Cache.Version,
		Sessions:      h,
		Threads:       h,
		Buckets:       h,
		Credentials:   creds,
		Endpoint:      cfg.Hub.Endpoint,
		SignatureTTL:  cfg.Workflow.SignatureTTL,
		BucketName:    cfg.Workflow.BucketName,
		GatewaySuffix: cfg.Hub.GatewaySuffix,
		FilePath:      cfg.Workflow.FilePath,
		FileContent:   []byte(cfg.Workflow.FileContent),
		Pacing:        cfg.Workflow.Pacing,
		Observer:      opts.Observer,
		Now:           opts.Now,
		Logger:        logger,
	})
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.Engine = eng
	return r, nil
}

// Close releases the hub and, if the runner opened it, the cache.
func (r *LocalRunner) Close() error {
	var errs []error
	if r.Hub != nil {
		errs = append(errs, r.Hub.Close())
	}
	errs = append(errs, r.closeCache())
	return errors.Join(errs...)
}

func (r *LocalRunner) closeCache() error {
	if !r.ownsCache || r.Cache == nil {
		return nil
	}
	return r.Cache.Close()
}

// CacheStatus describes what an earlier run left in the cache.
type CacheStatus struct {
	// PublicKey is empty when no identity is cached.
	PublicKey string
	// SessionExpiry is zero when no session context is cached.
	SessionExpiry time.Time
	HasToken      bool
	ThreadID      string
	ThreadState   string
}

// Status reads the cached provisioning state under the configured cache
// version without contacting the hub.
func (r *LocalRunner) Status(ctx context.Context) (CacheStatus, error) {
	var st CacheStatus
	cache := persistence.NewVersioned(r.Cache, r.cfg.Cache.Version)

	idStr, ok, err := cache.Get(ctx, identity.CacheKey)
	if err != nil || !ok {
		return st, err
	}
	id, err := identity.Ed25519Provider{}.FromString(idStr)
	if err != nil {
		return st, fmt.Errorf("restore cached identity: %w", err)
	}
	st.PublicKey = id.Public()

	if raw, ok, err := cache.Get(ctx, session.ContextKey(idStr)); err != nil {
		return st, err
	} else if ok {
		if sc, err := api.SessionContextFromJSON([]byte(raw), r.cfg.Hub.Endpoint); err == nil {
			st.SessionExpiry, _ = sc.SignatureExpiry()
		}
	}

	token, ok, err := cache.Get(ctx, session.TokenKey(idStr))
	if err != nil {
		return st, err
	}
	st.HasToken = ok && token != ""

	if raw, ok, err := cache.Get(ctx, thread.CacheKey(idStr)); err != nil {
		return st, err
	} else if ok {
		var intent thread.Intent
		if err := json.Unmarshal([]byte(raw), &intent); err == nil {
			st.ThreadID = intent.ThreadID.String()
			st.ThreadState = string(intent.State)
		}
	}
	return st, nil
}

// ClearCache removes every cached entry. The next run provisions from
// scratch.
func (r *LocalRunner) ClearCache(ctx context.Context) error {
	return r.Cache.Clear(ctx)
}
