package api

import "time"

// EventType identifies a workflow history event.
type EventType string

const (
	EventStepStarted   EventType = "step.started"
	EventStepSucceeded EventType = "step.succeeded"
	EventStepFailed    EventType = "step.failed"
	EventStepMismatch  EventType = "step.mismatch"
	EventStepRetried   EventType = "step.retried"

	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowReset     EventType = "workflow.reset"
)

// StepEvent is a minimal append-only history record for audit/debugging.
type StepEvent struct {
	At   time.Time
	Type EventType

	StepKey   string
	StepIndex int

	// Small, human-oriented details (diagnostic message, error text).
	Detail string
}
