/*
Package calendar answers which days a request of a given kind may cover and
turns a sequence of day taps into a validated date range.

PURPOSE:
  Engine is a pure rule set. The holiday calendar and the per-kind weekday
  restrictions are data handed in by the caller (see factory.ParseRules).
  Selector is the tap state machine that uses it.

BLOCKING RULES (per kind):
  ┌────────────────────────┬──────────────────────────────────────────────┐
  │ Kind has a KindRule    │ holiday blocks (unless AdvisoryHolidays)     │
  │                        │ weekday in BlockedWeekdays blocks            │
  ├────────────────────────┼──────────────────────────────────────────────┤
  │ Kind has no KindRule   │ nothing blocks                               │
  └────────────────────────┴──────────────────────────────────────────────┘

  A range is checked day by day over its full inclusive span. Valid
  endpoints do not make a valid range.

SEE ALSO:
  - selector.go: Tap state machine and day annotations
  - generic/holiday.go: HolidayCalendar
*/
package calendar

import (
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
)

// =============================================================================
// RULES
// =============================================================================

type Violation string

const (
	ViolationContainsHoliday           Violation = "contains_holiday"
	ViolationContainsNonWorkingWeekday Violation = "contains_non_working_weekday"
)

// KindRule is the restriction set of one request kind.
type KindRule struct {
	BlockedWeekdays generic.WeekdaySet

	// AdvisoryHolidays makes holidays informational for this kind: they are
	// annotated and reported by Advisories but never block.
	AdvisoryHolidays bool
}

// Rules is the engine configuration.
type Rules struct {
	Holidays generic.HolidayCalendar
	Kinds    map[timeoff.Kind]KindRule
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	holidays generic.HolidayCalendar
	kinds    map[timeoff.Kind]KindRule
}

func NewEngine(rules Rules) *Engine {
	e := &Engine{
		holidays: rules.Holidays,
		kinds:    make(map[timeoff.Kind]KindRule, len(rules.Kinds)),
	}
	if e.holidays == nil {
		e.holidays = generic.NewHolidaySet()
	}
	for k, r := range rules.Kinds {
		e.kinds[k] = r
	}
	return e
}

// Rule returns the configured rule for kind.
func (e *Engine) Rule(kind timeoff.Kind) (KindRule, bool) {
	r, ok := e.kinds[kind]
	return r, ok
}

func (e *Engine) BlockedWeekdays(kind timeoff.Kind) generic.WeekdaySet {
	return e.kinds[kind].BlockedWeekdays
}

// HolidaysBlock reports whether holidays are blocking (not advisory) for kind.
func (e *Engine) HolidaysBlock(kind timeoff.Kind) bool {
	r, ok := e.kinds[kind]
	return ok && !r.AdvisoryHolidays
}

func (e *Engine) IsHoliday(date generic.Date) bool { return e.holidays.IsHoliday(date) }

// Holidays lists the holidays in w.
func (e *Engine) Holidays(w generic.Window) []generic.Holiday { return e.holidays.HolidaysIn(w) }

// IsBlocked reports whether date may not be part of a request of kind.
func (e *Engine) IsBlocked(date generic.Date, kind timeoff.Kind) bool {
	return len(e.dayViolations(date, kind)) > 0
}

func (e *Engine) dayViolations(date generic.Date, kind timeoff.Kind) []Violation {
	r, ok := e.kinds[kind]
	if !ok {
		return nil
	}
	var out []Violation
	if !r.AdvisoryHolidays && e.holidays.IsHoliday(date) {
		out = append(out, ViolationContainsHoliday)
	}
	if r.BlockedWeekdays.Has(date.Weekday()) {
		out = append(out, ViolationContainsNonWorkingWeekday)
	}
	return out
}

// RangeViolations walks every day of [start, end] and returns each violation
// kind found, holiday first. Reversed bounds are walked in chronological order.
func (e *Engine) RangeViolations(start, end generic.Date, kind timeoff.Kind) []Violation {
	var holiday, weekday bool
	e.walk(start, end, func(d generic.Date) bool {
		for _, v := range e.dayViolations(d, kind) {
			switch v {
			case ViolationContainsHoliday:
				holiday = true
			case ViolationContainsNonWorkingWeekday:
				weekday = true
			}
		}
		return !(holiday && weekday)
	})

	var out []Violation
	if holiday {
		out = append(out, ViolationContainsHoliday)
	}
	if weekday {
		out = append(out, ViolationContainsNonWorkingWeekday)
	}
	return out
}

// BlockedDates returns the blocked days inside [start, end].
func (e *Engine) BlockedDates(start, end generic.Date, kind timeoff.Kind) []generic.Date {
	var out []generic.Date
	e.walk(start, end, func(d generic.Date) bool {
		if e.IsBlocked(d, kind) {
			out = append(out, d)
		}
		return true
	})
	return out
}

// Advisories returns the holidays inside [start, end] that kind is allowed
// to cover but that a consumer should still point out.
func (e *Engine) Advisories(start, end generic.Date, kind timeoff.Kind) []generic.Holiday {
	r, ok := e.kinds[kind]
	if !ok || !r.AdvisoryHolidays {
		return nil
	}
	if end.Before(start) {
		start, end = end, start
	}
	return e.holidays.HolidaysIn(generic.Window{From: start, To: end})
}

func (e *Engine) walk(start, end generic.Date, fn func(generic.Date) bool) {
	if start.IsZero() || end.IsZero() {
		return
	}
	if end.Before(start) {
		start, end = end, start
	}
	generic.Window{From: start, To: end}.Each(fn)
}
