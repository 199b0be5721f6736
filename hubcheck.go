package hubcheck

import (
	"context"

	"github.com/petrijr/hubcheck/internal/config"
	"github.com/petrijr/hubcheck/internal/engine"
	"github.com/petrijr/hubcheck/internal/persistence"
	"github.com/petrijr/hubcheck/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	WorkflowState        = api.WorkflowState
	Step                 = api.Step
	Status               = api.Status
	StepEvent            = api.StepEvent
	Observer             = api.Observer
	StateFunc            = api.StateFunc
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	Config       = config.Config
	EngineConfig = engine.Config
	Cache        = persistence.Cache
)

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	DefaultConfig        = config.Default
	LoadConfig           = config.Load
)

const (
	StatusPending  = api.StatusPending
	StatusRunning  = api.StatusRunning
	StatusSuccess  = api.StatusSuccess
	StatusFailed   = api.StatusFailed
	StatusMismatch = api.StatusMismatch
)

// Step indices, in workflow order.
const (
	StepIdentity = engine.StepIdentity
	StepThread   = engine.StepThread
	StepCreate   = engine.StepCreate
	StepQuery    = engine.StepQuery
	StepBucket   = engine.StepBucket
)

var (
	ErrStepFailed          = engine.ErrStepFailed
	ErrNoSuchStep          = engine.ErrNoSuchStep
	ErrNotRetryable        = engine.ErrNotRetryable
	ErrCorrectnessMismatch = api.ErrCorrectnessMismatch
	ErrCache               = persistence.ErrCache
)

// NewEngine builds an engine against caller-supplied capabilities.
func NewEngine(cfg EngineConfig) (*engine.Engine, error) {
	return engine.New(cfg)
}

// OpenCache builds a Cache from a DSN such as "sqlite:///tmp/cache.db".
func OpenCache(ctx context.Context, dsn string) (Cache, error) {
	return persistence.Open(ctx, dsn)
}
