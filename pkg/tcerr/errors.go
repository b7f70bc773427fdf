// Package tcerr defines the closed set of error kinds the runtime surfaces
// to callers (spec §7). An operation that fails for one of these reasons
// returns an error wrapping the matching sentinel via
// fmt.Errorf("...: %w", ...), so callers can branch with errors.Is without
// parsing messages; errors from outside the runtime (a request handler's
// own error, file I/O) are returned as they are.
package tcerr

import "errors"

var (
	// ErrValidation covers bad identifiers, out-of-range precision, and
	// numeric parse failures.
	ErrValidation = errors.New("validation")

	// ErrLifecycleMismatch means the operation is not allowed in the
	// component's current lifecycle state.
	ErrLifecycleMismatch = errors.New("lifecycle mismatch")

	// ErrBacklogFull means the message bus ingress queue is saturated.
	ErrBacklogFull = errors.New("backlog full")

	// ErrTimedOut means a request did not receive a response within its
	// deadline.
	ErrTimedOut = errors.New("timed out")

	// ErrNoHandler means no request handler is registered for a topic.
	ErrNoHandler = errors.New("no handler")

	// ErrNoRoute means no venue routing entry exists for an instrument.
	ErrNoRoute = errors.New("no route")

	// ErrOrderInvalidTransition means the requested order state transition
	// is not allowed from the order's current status.
	ErrOrderInvalidTransition = errors.New("order invalid transition")

	// ErrShutdown means the operation was aborted because the owning
	// component is stopping or stopped.
	ErrShutdown = errors.New("shutdown")

	// ErrNotFound means the referenced order, subscription, or cache key is
	// unknown.
	ErrNotFound = errors.New("not found")
)
