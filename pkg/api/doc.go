// Package api contains the shared types of the hubcheck provisioning
// workflow: the step model, the remote capability interfaces it drives, the
// session context that authorizes those calls, and the observer hooks used
// for rendering, logging and metrics.
//
// Most users interact with the higher-level hubcheck package, which
// re-exports selected types from here. The api package is intended for
// custom integrations such as alternative hub clients or renderers.
//
// # Workflow Model
//
// A workflow is a fixed, ordered list of Steps. Each step has a Status:
//
//   - PENDING: not started yet
//   - RUNNING: the step body is executing
//   - SUCCESS: the step completed and the engine may advance
//   - FAILED: a remote call or the cache failed
//   - MISMATCH: all calls succeeded but the result was not what the
//     workflow expected
//
// Only the step at WorkflowState.CurrentStep can execute. Engine.AdvanceIfReady
// runs it when pending, moves past it when it succeeded, and otherwise does
// nothing. A failed step stays failed until Engine.Retry is called.
//
// # Capabilities
//
// The engine never talks to the network directly. It is handed implementations
// of IdentityProvider, SessionClient, ThreadDB and Buckets. Every remote call
// carries a SessionContext, an immutable value holding the developer key
// signature, the API token and the thread scope.
//
// # Errors
//
// A step that fails because its result is wrong returns an error built with
// Mismatch; it matches ErrCorrectnessMismatch with errors.Is. Cache failures
// wrap ErrCache. Classify maps any step error onto an ErrorKind.
//
// # Observability
//
// Observers receive snapshots of the workflow state. NoopObserver,
// LoggingObserver, BasicMetrics and StateFunc are provided, and
// NewCompositeObserver fans out to several of them.
package api
