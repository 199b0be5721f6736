package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the workflow engine for rendering,
// logging and metrics.
//
// Every callback receives a snapshot; observers may keep it but never see
// later changes through it. Implementations should be fast and non-blocking.
type Observer interface {
	// OnStepStart is called after a step was marked RUNNING, before its body
	// executes.
	OnStepStart(ctx context.Context, state WorkflowState, step Step, stepIndex int)

	// OnStepCompleted is called once a step body returned. err is nil for a
	// successful step.
	OnStepCompleted(ctx context.Context, state WorkflowState, step Step, stepIndex int, err error, duration time.Duration)

	// OnStateChanged is called for every new snapshot the engine publishes.
	OnStateChanged(ctx context.Context, state WorkflowState)

	// OnWorkflowCompleted is called once the last step succeeded and the
	// engine advanced past it.
	OnWorkflowCompleted(ctx context.Context, state WorkflowState)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnStepStart(ctx context.Context, state WorkflowState, step Step, idx int) {}
func (NoopObserver) OnStepCompleted(ctx context.Context, state WorkflowState, step Step, idx int, err error, d time.Duration) {
}
func (NoopObserver) OnStateChanged(ctx context.Context, state WorkflowState)      {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, state WorkflowState) {}

// StateFunc adapts a plain function into an Observer that only receives
// snapshots.
type StateFunc func(ctx context.Context, state WorkflowState)

func (f StateFunc) OnStepStart(ctx context.Context, state WorkflowState, step Step, idx int) {}
func (f StateFunc) OnStepCompleted(ctx context.Context, state WorkflowState, step Step, idx int, err error, d time.Duration) {
}
func (f StateFunc) OnStateChanged(ctx context.Context, state WorkflowState) {
	f(ctx, state)
}
func (f StateFunc) OnWorkflowCompleted(ctx context.Context, state WorkflowState) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, state WorkflowState, step Step, idx int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, state, step, idx)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, state WorkflowState, step Step, idx int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, state, step, idx, err, d)
	}
}

func (c *CompositeObserver) OnStateChanged(ctx context.Context, state WorkflowState) {
	for _, o := range c.observers {
		o.OnStateChanged(ctx, state)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, state WorkflowState) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, state)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	NoopObserver
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs step lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, state WorkflowState, step Step, idx int) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("step", step.Key),
		slog.String("name", step.Name),
		slog.Int("step_index", idx),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, state WorkflowState, step Step, idx int, err error, d time.Duration) {
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("step", step.Key),
		slog.String("name", step.Name),
		slog.Int("step_index", idx),
		slog.String("status", string(step.Status)),
		slog.String("message", step.Message),
		slog.Duration("duration", d),
		slog.String("error_kind", Classify(err).String()),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, state WorkflowState) {
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.Int("steps", len(state.Steps)),
		slog.String("bucket_url", state.BucketURL),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	stepsStarted       atomic.Int64
	stepsSucceeded     atomic.Int64
	stepsFailed        atomic.Int64
	stepsMismatched    atomic.Int64
	workflowsCompleted atomic.Int64
	totalStepDuration  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	StepsStarted       int64
	StepsSucceeded     int64
	StepsFailed        int64
	StepsMismatched    int64
	WorkflowsCompleted int64

	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnStepStart(ctx context.Context, state WorkflowState, step Step, idx int) {
	m.stepsStarted.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, state WorkflowState, step Step, idx int, err error, d time.Duration) {
	switch Classify(err) {
	case KindNone:
		m.stepsSucceeded.Add(1)
		// Only successful steps count towards the average duration.
		m.totalStepDuration.Add(d.Nanoseconds())
	case KindMismatch:
		m.stepsMismatched.Add(1)
	default:
		m.stepsFailed.Add(1)
	}
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, state WorkflowState) {
	m.workflowsCompleted.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	succeeded := m.stepsSucceeded.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if succeeded > 0 {
		avg = time.Duration(totalNs / succeeded)
	}

	return BasicMetricsSnapshot{
		StepsStarted:       m.stepsStarted.Load(),
		StepsSucceeded:     succeeded,
		StepsFailed:        m.stepsFailed.Load(),
		StepsMismatched:    m.stepsMismatched.Load(),
		WorkflowsCompleted: m.workflowsCompleted.Load(),
		AvgStepDuration:    avg,
	}
}
