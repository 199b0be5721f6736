package engine

import "github.com/petrijr/hubcheck/pkg/api"

// The functions below are the only way the workflow state changes. Each one
// takes a state it owns and returns the next state.

func initialState(defs []stepDef) api.WorkflowState {
	steps := make([]api.Step, len(defs))
	for i, d := range defs {
		steps[i] = api.Step{Key: d.key, Name: d.name, Status: api.StatusPending}
	}
	return api.WorkflowState{Steps: steps}
}

func markRunning(s api.WorkflowState, idx int) api.WorkflowState {
	s.Steps[idx].Status = api.StatusRunning
	s.Steps[idx].Message = ""
	return s
}

func markPending(s api.WorkflowState, idx int) api.WorkflowState {
	s.Steps[idx].Status = api.StatusPending
	return s
}

func markSucceeded(s api.WorkflowState, idx int, msg string) api.WorkflowState {
	s.Steps[idx].Status = api.StatusSuccess
	s.Steps[idx].Message = msg
	return s
}

func markFailed(s api.WorkflowState, idx int, err error) api.WorkflowState {
	status := api.StatusFailed
	if api.Classify(err) == api.KindMismatch {
		status = api.StatusMismatch
	}
	s.Steps[idx].Status = status
	s.Steps[idx].Message = err.Error()
	return s
}

func advance(s api.WorkflowState) api.WorkflowState {
	if s.CurrentStep < len(s.Steps) {
		s.CurrentStep++
	}
	return s
}

func retryStep(s api.WorkflowState, idx int) api.WorkflowState {
	s.Steps[idx].Status = api.StatusPending
	s.Steps[idx].Message = ""
	return s
}

func reset(s api.WorkflowState) api.WorkflowState {
	for i := range s.Steps {
		s.Steps[i].Status = api.StatusPending
		s.Steps[i].Message = ""
	}
	return api.WorkflowState{Steps: s.Steps}
}

func withLastMessage(s api.WorkflowState, msg string) api.WorkflowState {
	s.LastMessage = msg
	return s
}

func diagnostic(step api.Step) string {
	if step.Message != "" {
		return step.Message
	}
	return api.DefaultDiagnostic(step.Status)
}
