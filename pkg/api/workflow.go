package api

import "context"

// Status represents the lifecycle state of a single workflow step.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"

	// StatusMismatch marks a step whose remote calls all succeeded but whose
	// result did not match what the workflow expected (for example a query
	// that does not return the record created by the previous step).
	StatusMismatch Status = "MISMATCH"
)

// Terminal reports whether the status has no automatic transition out.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusMismatch
}

// Failed reports whether the status is one of the failure states.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusMismatch
}

// Step is one unit of the provisioning workflow.
type Step struct {
	// Key is the stable identifier of the step ("Step 0", "Step 1", ...).
	Key string
	// Name is the human-readable label.
	Name string

	Status Status

	// Message is an optional diagnostic: a success note, or the error text
	// of a failed step.
	Message string
}

// WorkflowState is the single source of truth rendered by observers.
//
// Values handed out by the engine are snapshots: the Steps slice is a copy and
// the session context is never mutated after it is published.
type WorkflowState struct {
	Steps []Step

	// CurrentStep is the index of the only step the engine may run.
	// It equals len(Steps) once every step succeeded.
	CurrentStep int

	Identity     Identity
	Session      *SessionContext
	ThreadID     ThreadID
	LastEntityID string
	BucketURL    string

	// LastMessage is the diagnostic most recently requested by the observer.
	LastMessage string
}

// Clone returns a copy of the state that shares no mutable memory with s.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.Steps = make([]Step, len(s.Steps))
	copy(out.Steps, s.Steps)
	if s.Session != nil {
		sc := *s.Session
		out.Session = &sc
	}
	return out
}

// Done reports whether every step succeeded.
func (s WorkflowState) Done() bool {
	return s.CurrentStep >= len(s.Steps)
}

// Current returns the step at CurrentStep, if any.
func (s WorkflowState) Current() (Step, bool) {
	if s.CurrentStep < 0 || s.CurrentStep >= len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[s.CurrentStep], true
}

// DefaultDiagnostic is the status-derived text shown for a step that has no
// message of its own.
func DefaultDiagnostic(s Status) string {
	switch s {
	case StatusPending:
		return "step pending"
	case StatusRunning:
		return "step running"
	case StatusSuccess:
		return "step success"
	default:
		return "step failed"
	}
}

// Engine is the interface produced to observers and drivers (UI loops,
// command line tools, tests).
type Engine interface {
	// Snapshot returns a copy of the current workflow state.
	Snapshot() WorkflowState

	// AdvanceIfReady runs the current step if it is pending, or moves to the
	// next step if the current one succeeded. It is idempotent: calling it on
	// a blocked workflow does nothing. It reports whether anything changed.
	AdvanceIfReady(ctx context.Context) bool

	// Run calls AdvanceIfReady until the workflow completes or blocks.
	Run(ctx context.Context) error

	// ShowDiagnostic returns the message of the given step (or a default
	// derived from its status) and records it as the state's LastMessage.
	ShowDiagnostic(stepIndex int) (string, error)

	// Retry moves a failed current step back to pending.
	Retry(stepIndex int) error

	// Reset returns every step to pending and clears the session handles.
	// Cached provisioning state is left untouched.
	Reset()
}
