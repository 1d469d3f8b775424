package calendar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrBlockedDay is returned when a tapped date is itself blocked for the kind.
	ErrBlockedDay = errors.New("day is not selectable")

	// ErrRangeRejected is returned when a candidate range contains a blocked day.
	ErrRangeRejected = errors.New("range contains days that are not selectable")

	// ErrInvalidRange is returned for a range with no start date.
	ErrInvalidRange = errors.New("invalid range")
)

// =============================================================================
// SELECTION ERROR
// =============================================================================

type Reason string

const (
	ReasonBlockedDay    Reason = "blocked_day"
	ReasonRangeRejected Reason = "range_rejected"
)

// SelectionError is the validation error a refused tap produces. It names the
// rules that fired so a consumer can tell the user why.
type SelectionError struct {
	Reason     Reason
	Kind       timeoff.Kind
	Date       generic.Date // the tapped date
	Start      generic.Date // range start, set for ReasonRangeRejected
	Violations []Violation
}

func (e *SelectionError) Error() string {
	v := make([]string, len(e.Violations))
	for i, viol := range e.Violations {
		v[i] = string(viol)
	}
	if e.Reason == ReasonRangeRejected {
		return fmt.Sprintf("range %s..%s rejected for %s: %s", e.Start, e.Date, e.Kind, strings.Join(v, ", "))
	}
	return fmt.Sprintf("%s is blocked for %s: %s", e.Date, e.Kind, strings.Join(v, ", "))
}

func (e *SelectionError) Unwrap() error {
	if e.Reason == ReasonRangeRejected {
		return ErrRangeRejected
	}
	return ErrBlockedDay
}

// Message is the user-facing text for the first violation.
func (e *SelectionError) Message() string {
	if len(e.Violations) == 0 {
		return "This date cannot be selected."
	}
	switch e.Violations[0] {
	case ViolationContainsHoliday:
		if e.Reason == ReasonRangeRejected {
			return "The selected range includes a holiday."
		}
		return "Holidays cannot be selected."
	default:
		if e.Reason == ReasonRangeRejected {
			return "The selected range includes a non-working day."
		}
		return "Non-working days cannot be selected."
	}
}

// IsRuleViolation returns true when err was produced by a calendar rule.
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrBlockedDay) || errors.Is(err, ErrRangeRejected)
}
