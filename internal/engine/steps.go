package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/petrijr/hubcheck/internal/records"
	"github.com/petrijr/hubcheck/pkg/api"
)

// stepResult is what a successful step body hands back: its diagnostic and
// the handles it wants stored in the state.
type stepResult struct {
	message string
	apply   func(api.WorkflowState) api.WorkflowState
}

type stepDef struct {
	key  string
	name string
	run  func(ctx context.Context, s api.WorkflowState) (stepResult, error)
}

// Step indices, in workflow order.
const (
	StepIdentity = iota
	StepThread
	StepCreate
	StepQuery
	StepBucket
)

func (e *Engine) buildSteps() []stepDef {
	defs := []stepDef{
		StepIdentity: {name: "Prepare Identity & API Token", run: e.prepareIdentity},
		StepThread:   {name: "Setup ThreadDB", run: e.setupThread},
		StepCreate:   {name: "Add Instance to Collection", run: e.addInstance},
		StepQuery:    {name: "Query from our Collection", run: e.queryInstances},
		StepBucket:   {name: "Push webpage to User Bucket", run: e.pushWebpage},
	}
	for i := range defs {
		defs[i].key = fmt.Sprintf("Step %d", i)
	}
	return defs
}

var errNoSession = errors.New("no session; identity step has not succeeded")

func (e *Engine) prepareIdentity(ctx context.Context, _ api.WorkflowState) (stepResult, error) {
	id, err := e.identities.ObtainIdentity(ctx)
	if err != nil {
		return stepResult{}, err
	}
	idStr := id.String()

	cached, err := e.sessions.ObtainContext(ctx, idStr)
	if err != nil {
		return stepResult{}, err
	}
	if cached != nil {
		return stepResult{
			message: "Using existing Identity",
			apply:   withSession(id, *cached),
		}, nil
	}

	sc := e.sessions.NewContext(e.cfg.Credentials)
	sc, _, err = e.sessions.ObtainToken(ctx, id, sc)
	if err != nil {
		return stepResult{}, err
	}
	if err := e.sessions.SaveContext(ctx, idStr, sc); err != nil {
		return stepResult{}, err
	}
	return stepResult{
		message: "Created new Identity",
		apply:   withSession(id, sc),
	}, nil
}

func withSession(id api.Identity, sc api.SessionContext) func(api.WorkflowState) api.WorkflowState {
	return func(s api.WorkflowState) api.WorkflowState {
		s.Identity = id
		s.Session = &sc
		return s
	}
}

func (e *Engine) setupThread(ctx context.Context, s api.WorkflowState) (stepResult, error) {
	if s.Identity == nil || s.Session == nil {
		return stepResult{}, errNoSession
	}
	tid, err := e.threads.ObtainThread(ctx, s.Identity.String(), *s.Session)
	if err != nil {
		return stepResult{}, err
	}
	scoped := s.Session.WithThread(tid)
	return stepResult{
		message: "User Thread linked to Identity",
		apply: func(s api.WorkflowState) api.WorkflowState {
			s.Session = &scoped
			s.ThreadID = tid
			return s
		},
	}, nil
}

func (e *Engine) addInstance(ctx context.Context, s api.WorkflowState) (stepResult, error) {
	if s.Session == nil || s.ThreadID == "" {
		return stepResult{}, errors.New("no thread; thread step has not succeeded")
	}
	id, err := e.records.Create(ctx, *s.Session, s.ThreadID, e.cfg.Collection, records.NewAstronaut())
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{
		message: "New instance added: " + id,
		apply: func(s api.WorkflowState) api.WorkflowState {
			s.LastEntityID = id
			return s
		},
	}, nil
}

// queryInstances finds every Astronaut, deletes them all and checks that
// the one created by the previous step was among them.
func (e *Engine) queryInstances(ctx context.Context, s api.WorkflowState) (stepResult, error) {
	if s.Session == nil || s.ThreadID == "" {
		return stepResult{}, errors.New("no thread; thread step has not succeeded")
	}
	ids, err := e.records.Query(ctx, *s.Session, s.ThreadID, e.cfg.Collection, records.AstronautQuery())
	if err != nil {
		return stepResult{}, err
	}
	found := s.LastEntityID != "" && slices.Contains(ids, s.LastEntityID)

	if err := e.records.Delete(ctx, *s.Session, s.ThreadID, e.cfg.Collection, ids); err != nil {
		return stepResult{}, err
	}

	msg := fmt.Sprintf("%d existing instances found", len(ids))
	if !found {
		e.logger.WarnContext(ctx, "created_instance_not_found",
			slog.String("entity_id", s.LastEntityID),
			slog.Int("matches", len(ids)),
		)
		return stepResult{}, api.Mismatch("%s", msg)
	}
	return stepResult{message: msg}, nil
}

func (e *Engine) pushWebpage(ctx context.Context, s api.WorkflowState) (stepResult, error) {
	if s.Session == nil {
		return stepResult{}, errNoSession
	}
	sc := *s.Session
	name := e.cfg.BucketName

	key, created, err := e.buckets.ObtainBucket(ctx, sc, name)
	if err != nil {
		return stepResult{}, err
	}
	if !created {
		e.logger.DebugContext(ctx, "bucket_reused", slog.String("name", name), slog.String("key", key))
	}
	if _, err := e.buckets.PushFile(ctx, sc, key, e.cfg.FilePath, bytes.NewReader(e.cfg.FileContent)); err != nil {
		return stepResult{}, err
	}

	url := e.buckets.DeriveURL(key)
	return stepResult{
		message: fmt.Sprintf("Bucket %s ready: %s", name, url),
		apply: func(s api.WorkflowState) api.WorkflowState {
			s.BucketURL = url
			return s
		},
	}, nil
}
