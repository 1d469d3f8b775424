/*
errors.go - Error types for the request workflow

ERROR CATEGORIES:
  1. Authorization - caller may not perform the action (ErrUnauthorized,
     ErrIllegalTransition). Reported distinctly from data errors.
  2. Record errors - a raw record could not be normalized (ErrMissingField,
     ErrUnknownShape, ErrInvalidRecord, ErrDuplicateID). Fatal for that record only.
  3. Repository errors - load or mutation failed (ErrLoadFailed, ErrActionFailed).

USAGE:
  if err := store.Approve(ctx, admin, "10"); timeoff.IsNotPermitted(err) {
      // 403 / 409, nothing changed
  }
*/
package timeoff

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthorized is returned when a non-admin invokes the approval workflow.
	ErrUnauthorized = errors.New("caller is not allowed to perform this action")

	// ErrIllegalTransition is returned when a status change leaves a terminal state.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrRequestNotFound is returned when no loaded request has the given id.
	ErrRequestNotFound = errors.New("request not found")

	// ErrActionInProgress is returned when an approve/reject for the same id is still running.
	ErrActionInProgress = errors.New("another action on this request is in progress")

	// ErrActionFailed is returned when the repository rejects a mutation.
	ErrActionFailed = errors.New("request action failed")

	// ErrLoadFailed is returned when fetching records from the repository fails.
	ErrLoadFailed = errors.New("loading requests failed")

	// ErrMissingField is returned when a record lacks id, owner id or start date.
	ErrMissingField = errors.New("required field missing")

	// ErrUnknownShape is returned when a record matches none of the known field sets.
	ErrUnknownShape = errors.New("unrecognized record shape")

	// ErrInvalidRecord is returned when a record is present but malformed.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDuplicateID is returned when two records of one batch share an id.
	ErrDuplicateID = errors.New("duplicate request id")

	// ErrUnsupportedKind is returned by repositories asked to store a kind
	// that has no source record shape.
	ErrUnsupportedKind = errors.New("request kind cannot be stored")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RecordError describes why one raw record was excluded from normalization.
type RecordError struct {
	Index int    // position in the input batch
	Shape string // e.g., "holiday/camel"; empty when unknown
	Field string // offending field, if any
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record %d (%s): %s: %v", e.Index, e.Shape, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.Shape, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// TransitionError reports a refused status change.
type TransitionError struct {
	RequestID string
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// ActionError wraps a repository failure during approve or reject.
type ActionError struct {
	Action    string // "approve" or "reject"
	RequestID string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s request %s: %v", e.Action, e.RequestID, e.Err)
}

func (e *ActionError) Unwrap() []error { return []error{ErrActionFailed, e.Err} }

// LoadError wraps a repository failure during fetch.
type LoadError struct {
	Filter string // owner id filter, empty for all records
	Err    error
}

func (e *LoadError) Error() string {
	if e.Filter == "" {
		return fmt.Sprintf("load all requests: %v", e.Err)
	}
	return fmt.Sprintf("load requests of %s: %v", e.Filter, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotPermitted returns true for authorization and workflow refusals.
func IsNotPermitted(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrIllegalTransition)
}

// IsRetryable returns true if the same call might succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrActionInProgress) ||
		errors.Is(err, ErrLoadFailed) ||
		errors.Is(err, ErrActionFailed)
}

// IsNotFound returns true when the request does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrRequestNotFound) }

// IsRecordError returns true when err excluded a single record.
func IsRecordError(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrUnknownShape) ||
		errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrDuplicateID)
}
