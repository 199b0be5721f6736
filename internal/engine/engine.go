package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/hubcheck/internal/bucket"
	"github.com/petrijr/hubcheck/internal/identity"
	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/internal/records"
	"github.com/petrijr/hubcheck/internal/session"
	"github.com/petrijr/hubcheck/internal/thread"
	"github.com/petrijr/hubcheck/pkg/api"
)

var (
	// ErrStepFailed is returned by Run when a step blocks the workflow.
	ErrStepFailed = errors.New("workflow step failed")
	// ErrNoSuchStep is returned for a step index outside the workflow.
	ErrNoSuchStep = errors.New("no such step")
	// ErrNotRetryable is returned by Retry for a step that is not the
	// current, failed step.
	ErrNotRetryable = errors.New("step is not retryable")
)

const (
	DefaultCacheVersion = 1
	DefaultBucketName   = "files"
	DefaultFilePath     = "index.html"
	DefaultFileContent  = "hello world"
)

// Config describes how to construct an Engine.
type Config struct {
	// Cache holds provisioning state between runs. Entries are versioned
	// with CacheVersion (DefaultCacheVersion when zero).
	Cache        persistence.Cache
	CacheVersion int

	// Identities defaults to identity.Ed25519Provider.
	Identities api.IdentityProvider
	Sessions   api.SessionClient
	Threads    api.ThreadDB
	Buckets    api.Buckets

	Credentials  api.UserKey
	Endpoint     string
	SignatureTTL time.Duration

	// Collection and Schema default to the Astronaut collection.
	Collection string
	Schema     []byte

	BucketName    string
	GatewaySuffix string
	FilePath      string
	FileContent   []byte

	// Pacing is a fixed delay before each step body runs.
	Pacing time.Duration

	Observer api.Observer
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.CacheVersion == 0 {
		c.CacheVersion = DefaultCacheVersion
	}
	if c.Identities == nil {
		c.Identities = identity.Ed25519Provider{}
	}
	if c.Collection == "" {
		c.Collection = records.AstronautCollection
	}
	if c.Schema == nil {
		c.Schema = records.AstronautSchema
	}
	if c.BucketName == "" {
		c.BucketName = DefaultBucketName
	}
	if c.FilePath == "" {
		c.FilePath = DefaultFilePath
	}
	if c.FileContent == nil {
		c.FileContent = []byte(DefaultFileContent)
	}
	if c.Observer == nil {
		c.Observer = api.NoopObserver{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) validate() error {
	switch {
	case c.Cache == nil:
		return errors.New("engine: cache is required")
	case c.Sessions == nil:
		return errors.New("engine: session client is required")
	case c.Threads == nil:
		return errors.New("engine: thread db is required")
	case c.Buckets == nil:
		return errors.New("engine: buckets client is required")
	case c.Credentials.Key == "":
		return errors.New("engine: api key is required")
	case c.Pacing < 0:
		return errors.New("engine: pacing must not be negative")
	}
	return nil
}

// Engine runs the provisioning workflow one step at a time.
//
// AdvanceIfReady, Retry and Reset are serialized, so concurrent drivers can
// never run a step twice. Snapshot and ShowDiagnostic only take the state
// lock and stay responsive while a step body runs.
type Engine struct {
	cfg      Config
	observer api.Observer
	logger   *slog.Logger

	identities *identity.Manager
	sessions   *session.Provider
	threads    *thread.Provisioner
	records    records.Operations
	buckets    *bucket.Provisioner

	steps []stepDef

	advanceMu sync.Mutex

	mu      sync.RWMutex
	state   api.WorkflowState
	history []api.StepEvent
}

var _ api.Engine = (*Engine)(nil)

// New builds an Engine with all steps pending.
func New(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cache := persistence.NewVersioned(cfg.Cache, cfg.CacheVersion)
	e := &Engine{
		cfg:        cfg,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		identities: identity.NewManager(cache, cfg.Identities, cfg.Logger),
		sessions: &session.Provider{
			Cache:        cache,
			Client:       cfg.Sessions,
			Endpoint:     cfg.Endpoint,
			SignatureTTL: cfg.SignatureTTL,
			Now:          cfg.Now,
			Logger:       cfg.Logger,
		},
		threads: &thread.Provisioner{
			Cache:      cache,
			DB:         cfg.Threads,
			Collection: cfg.Collection,
			Schema:     cfg.Schema,
			Logger:     cfg.Logger,
		},
		records: records.Operations{DB: cfg.Threads},
		buckets: &bucket.Provisioner{
			Buckets:       cfg.Buckets,
			GatewaySuffix: cfg.GatewaySuffix,
			Logger:        cfg.Logger,
		},
	}
	e.steps = e.buildSteps()
	e.state = initialState(e.steps)
	return e, nil
}

// Snapshot returns a copy of the current workflow state.
func (e *Engine) Snapshot() api.WorkflowState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// History returns the events recorded so far.
func (e *Engine) History() []api.StepEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]api.StepEvent, len(e.history))
	copy(out, e.history)
	return out
}

// AdvanceIfReady runs the current step if it is pending, or moves past it if
// it succeeded. It reports whether the state changed.
func (e *Engine) AdvanceIfReady(ctx context.Context) bool {
	e.advanceMu.Lock()
	defer e.advanceMu.Unlock()

	s := e.Snapshot()
	cur, ok := s.Current()
	if !ok {
		return false
	}

	switch cur.Status {
	case api.StatusPending:
		e.runStep(ctx, s.CurrentStep)
		return true
	case api.StatusSuccess:
		next := e.update(ctx, advance)
		if next.Done() {
			e.record(api.EventWorkflowCompleted, "", len(next.Steps), next.BucketURL)
			e.observer.OnWorkflowCompleted(ctx, next)
		}
		return true
	default:
		return false
	}
}

// Run drives the workflow until it completes or a step blocks it.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.AdvanceIfReady(ctx) {
			break
		}
	}

	s := e.Snapshot()
	if s.Done() {
		return nil
	}
	cur, _ := s.Current()
	return fmt.Errorf("%w: %s %q is %s: %s", ErrStepFailed, cur.Key, cur.Name, cur.Status, cur.Message)
}

// ShowDiagnostic returns the message of step idx, or a default derived from
// its status, and records it as the state's LastMessage.
func (e *Engine) ShowDiagnostic(idx int) (string, error) {
	var msg string
	_, err := e.tryUpdate(context.Background(), func(s api.WorkflowState) (api.WorkflowState, error) {
		if idx < 0 || idx >= len(s.Steps) {
			return s, fmt.Errorf("%w: %d", ErrNoSuchStep, idx)
		}
		msg = diagnostic(s.Steps[idx])
		return withLastMessage(s, msg), nil
	})
	if err != nil {
		return "", err
	}
	return msg, nil
}

// Retry moves the current step from FAILED or MISMATCH back to PENDING.
func (e *Engine) Retry(idx int) error {
	e.advanceMu.Lock()
	defer e.advanceMu.Unlock()

	var key string
	_, err := e.tryUpdate(context.Background(), func(s api.WorkflowState) (api.WorkflowState, error) {
		if idx < 0 || idx >= len(s.Steps) {
			return s, fmt.Errorf("%w: %d", ErrNoSuchStep, idx)
		}
		step := s.Steps[idx]
		if idx != s.CurrentStep || !step.Status.Failed() {
			return s, fmt.Errorf("%w: %s is %s", ErrNotRetryable, step.Key, step.Status)
		}
		key = step.Key
		return retryStep(s, idx), nil
	})
	if err != nil {
		return err
	}
	e.record(api.EventStepRetried, key, idx, "")
	e.logger.Info("step_retried", slog.String("step", key), slog.Int("step_index", idx))
	return nil
}

// Reset returns every step to PENDING and clears the session handles.
// Cached provisioning state is kept, so the next run reuses it.
func (e *Engine) Reset() {
	e.advanceMu.Lock()
	defer e.advanceMu.Unlock()

	e.update(context.Background(), reset)
	e.record(api.EventWorkflowReset, "", 0, "")
	e.logger.Info("workflow_reset")
}

func (e *Engine) runStep(ctx context.Context, idx int) {
	def := e.steps[idx]

	running := e.update(ctx, func(s api.WorkflowState) api.WorkflowState {
		return markRunning(s, idx)
	})
	e.record(api.EventStepStarted, def.key, idx, "")
	e.observer.OnStepStart(ctx, running, running.Steps[idx], idx)

	if err := e.pace(ctx); err != nil {
		// Nothing ran; the step can be picked up again.
		e.update(ctx, func(s api.WorkflowState) api.WorkflowState {
			return markPending(s, idx)
		})
		e.logger.DebugContext(ctx, "step_pacing_aborted", slog.String("step", def.key), slog.Any("error", err))
		return
	}

	start := e.cfg.Now()
	res, err := def.run(ctx, running)
	duration := e.cfg.Now().Sub(start)

	var done api.WorkflowState
	if err != nil {
		done = e.update(ctx, func(s api.WorkflowState) api.WorkflowState {
			return markFailed(s, idx, err)
		})
		evt := api.EventStepFailed
		if errors.Is(err, api.ErrCorrectnessMismatch) {
			evt = api.EventStepMismatch
		}
		e.record(evt, def.key, idx, err.Error())
	} else {
		done = e.update(ctx, func(s api.WorkflowState) api.WorkflowState {
			if res.apply != nil {
				s = res.apply(s)
			}
			return markSucceeded(s, idx, res.message)
		})
		e.record(api.EventStepSucceeded, def.key, idx, res.message)
	}
	e.observer.OnStepCompleted(ctx, done, done.Steps[idx], idx, err, duration)
}

func (e *Engine) pace(ctx context.Context) error {
	if e.cfg.Pacing <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.cfg.Pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// update applies fn to the current state and publishes the result.
func (e *Engine) update(ctx context.Context, fn func(api.WorkflowState) api.WorkflowState) api.WorkflowState {
	next, _ := e.tryUpdate(ctx, func(s api.WorkflowState) (api.WorkflowState, error) {
		return fn(s), nil
	})
	return next
}

// tryUpdate is update for transitions that may be refused. A refused
// transition publishes nothing.
func (e *Engine) tryUpdate(ctx context.Context, fn func(api.WorkflowState) (api.WorkflowState, error)) (api.WorkflowState, error) {
	e.mu.Lock()
	next, err := fn(e.state.Clone())
	if err != nil {
		e.mu.Unlock()
		return api.WorkflowState{}, err
	}
	e.state = next
	snap := next.Clone()
	e.mu.Unlock()

	e.observer.OnStateChanged(ctx, snap)
	return snap, nil
}

func (e *Engine) record(t api.EventType, key string, idx int, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, api.StepEvent{
		At:        e.cfg.Now(),
		Type:      t,
		StepKey:   key,
		StepIndex: idx,
		Detail:    detail,
	})
}
