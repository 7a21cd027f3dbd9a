// -------------------------------------------------------------------------------
// Service - Error Taxonomy
//
// Project: Streamlo
//
// Errors the HTTP layer maps onto status codes. Precondition errors mean no
// write happened; ConsistencyError wraps a failed saga outcome and says whether
// the partial writes were fully undone or left orphans behind.
// -------------------------------------------------------------------------------

package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunguyenn/StreamloWebservice/internal/saga"
)

// -------------------------------------------------------------------------
// PRECONDITION ERRORS
// -------------------------------------------------------------------------

var (
	// ErrNotFound means the referenced entity does not exist. Nothing was
	// written.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument means request validation failed. Nothing was
	// written.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrForbidden means the requester is not allowed to perform the
	// operation on this entity. Nothing was written.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicate means a uniqueness or already-related precondition
	// failed. Nothing user-visible was written.
	ErrDuplicate = errors.New("already exists")
)

// invalidf wraps a validation failure in ErrInvalidArgument.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// -------------------------------------------------------------------------
// CONSISTENCY ERRORS
// -------------------------------------------------------------------------

// ConsistencyError reports a saga that failed partway through a multi-document
// mutation. Callers distinguish a clean rollback from orphaned resources via
// the wrapped Result state.
type ConsistencyError struct {
	Result *saga.Result
}

func (e *ConsistencyError) Error() string {
	r := e.Result
	if r.State == saga.StateOrphaned {
		names := make([]string, len(r.Orphans))
		for i, o := range r.Orphans {
			names[i] = o.Step
		}
		return fmt.Sprintf("%s failed at step %q: %v (rollback incomplete, orphaned: %s)",
			r.Saga, r.FailedStep, r.Err, strings.Join(names, ", "))
	}
	return fmt.Sprintf("%s failed at step %q: %v (all changes undone)", r.Saga, r.FailedStep, r.Err)
}

// Unwrap exposes the original forward-step error for errors.Is/As matching.
func (e *ConsistencyError) Unwrap() error { return e.Result.Err }

// sagaError converts a non-OK saga result into a ConsistencyError. Call sites
// map races caught by a conditional first write back onto precondition errors
// before falling through to this.
func sagaError(res *saga.Result) error {
	if res.OK() {
		return nil
	}
	return &ConsistencyError{Result: res}
}
