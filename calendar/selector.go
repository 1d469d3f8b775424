package calendar

import (
	"fmt"
	"sort"

	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
)

// =============================================================================
// SELECTION STATE
// =============================================================================

//	        tap (selectable)            tap >= start, no violations
//	Empty ───────────────▶ Single ──────────────────────────────▶ Committed
//	  ▲                    │  ▲ tap < start: re-base              │
//	  │                    └──┘ violation: restart if selectable  │
//	  └──────── SetKind / Reset ◀─────────── next tap restarts ───┘
type State int

const (
	StateEmpty State = iota
	StateSingleSelected
	StateRangeCommitted
)

func (s State) String() string {
	switch s {
	case StateSingleSelected:
		return "single_selected"
	case StateRangeCommitted:
		return "range_committed"
	default:
		return "empty"
	}
}

// Range is the current selection. End is zero until a range is committed and
// is never set without Start. Start <= End whenever both are set.
type Range struct {
	Start generic.Date
	End   generic.Date
}

func (r Range) IsEmpty() bool { return r.Start.IsZero() }

// Mark is the rendering role of one day. Styling is the consumer's business.
type Mark string

const (
	MarkHoliday         Mark = "holiday"
	MarkAdvisoryHoliday Mark = "advisory_holiday"
	MarkBlockedWeekday  Mark = "blocked_weekday"
	MarkRangeStart      Mark = "range_start"
	MarkRangeInterior   Mark = "range_interior"
	MarkRangeEnd        Mark = "range_end"
	MarkSingle          Mark = "single"
)

func (m Mark) IsSelection() bool {
	switch m {
	case MarkRangeStart, MarkRangeInterior, MarkRangeEnd, MarkSingle:
		return true
	}
	return false
}

// Annotations maps each annotated day to its mark. Days without a mark are absent.
type Annotations map[generic.Date]Mark

type DayMark struct {
	Date generic.Date `json:"date"`
	Mark Mark         `json:"mark"`
}

// Sorted lists the annotations in date order.
func (a Annotations) Sorted() []DayMark {
	out := make([]DayMark, 0, len(a))
	for d, m := range a {
		out = append(out, DayMark{Date: d, Mark: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// =============================================================================
// SELECTOR
// =============================================================================

// Selector converts day taps into a committed range for one request kind.
// It is not safe for concurrent use; taps are processed one at a time.
type Selector struct {
	engine *Engine
	kind   timeoff.Kind
	window generic.Window

	state State
	rng   Range
	marks Annotations
}

// NewSelector starts Empty. window bounds the rule annotations (holidays and
// blocked weekdays); selected days are annotated wherever they are.
func NewSelector(engine *Engine, kind timeoff.Kind, window generic.Window) *Selector {
	s := &Selector{engine: engine, kind: kind, window: window}
	s.recompute()
	return s
}

func (s *Selector) State() State           { return s.state }
func (s *Selector) Range() Range           { return s.rng }
func (s *Selector) Kind() timeoff.Kind     { return s.kind }
func (s *Selector) Window() generic.Window { return s.window }

// Annotations returns a copy of the current day annotations.
func (s *Selector) Annotations() Annotations {
	out := make(Annotations, len(s.marks))
	for d, m := range s.marks {
		out[d] = m
	}
	return out
}

// Tap feeds one day-tap event. A refused tap returns a *SelectionError.
//
//	Empty/Committed + blocked day        -> refused, unchanged
//	Empty/Committed + selectable day     -> Single(date)
//	Single + earlier selectable day      -> Single(date)
//	Single + earlier blocked day         -> refused, unchanged
//	Single + date >= start, clean range  -> Committed(start, date)
//	Single + date >= start, violations   -> refused; Single(date) if date is
//	                                        selectable, else Single(start)
func (s *Selector) Tap(date generic.Date) error {
	if date.IsZero() {
		return fmt.Errorf("%w: no date", ErrInvalidRange)
	}

	switch s.state {
	case StateSingleSelected:
		return s.tapWithStart(date)
	default:
		if err := s.checkDay(date); err != nil {
			return err
		}
		s.set(StateSingleSelected, Range{Start: date})
		return nil
	}
}

func (s *Selector) tapWithStart(date generic.Date) error {
	start := s.rng.Start

	if date.Before(start) {
		if err := s.checkDay(date); err != nil {
			return err
		}
		s.set(StateSingleSelected, Range{Start: date})
		return nil
	}

	violations := s.engine.RangeViolations(start, date, s.kind)
	if len(violations) == 0 {
		s.set(StateRangeCommitted, Range{Start: start, End: date})
		return nil
	}

	err := &SelectionError{
		Reason:     ReasonRangeRejected,
		Kind:       s.kind,
		Date:       date,
		Start:      start,
		Violations: violations,
	}
	if !s.engine.IsBlocked(date, s.kind) {
		s.set(StateSingleSelected, Range{Start: date})
	}
	return err
}

func (s *Selector) checkDay(date generic.Date) error {
	if v := s.engine.dayViolations(date, s.kind); len(v) > 0 {
		return &SelectionError{Reason: ReasonBlockedDay, Kind: s.kind, Date: date, Violations: v}
	}
	return nil
}

// SetKind switches the active kind and clears any selection.
func (s *Selector) SetKind(kind timeoff.Kind) {
	s.kind = kind
	s.set(StateEmpty, Range{})
}

// SetWindow moves the annotated window. The selection is kept.
func (s *Selector) SetWindow(w generic.Window) {
	s.window = w
	s.recompute()
}

func (s *Selector) Reset() { s.set(StateEmpty, Range{}) }

// Restore rebuilds a selection held elsewhere (e.g., by an HTTP client).
// A zero end restores a single selection. Reversed bounds are swapped. The
// selection is validated like taps are; on error the selector is left Empty.
func (s *Selector) Restore(start, end generic.Date) error {
	s.set(StateEmpty, Range{})
	if start.IsZero() {
		if end.IsZero() {
			return nil
		}
		return fmt.Errorf("%w: end %s without start", ErrInvalidRange, end)
	}
	if end.IsZero() {
		if err := s.checkDay(start); err != nil {
			return err
		}
		s.set(StateSingleSelected, Range{Start: start})
		return nil
	}
	if end.Before(start) {
		start, end = end, start
	}
	if v := s.engine.RangeViolations(start, end, s.kind); len(v) > 0 {
		return &SelectionError{Reason: ReasonRangeRejected, Kind: s.kind, Date: end, Start: start, Violations: v}
	}
	s.set(StateRangeCommitted, Range{Start: start, End: end})
	return nil
}

func (s *Selector) set(state State, r Range) {
	s.state = state
	s.rng = r
	s.recompute()
}

// recompute rebuilds the annotation map. Selection marks are written last so
// they win over rule marks.
func (s *Selector) recompute() {
	marks := make(Annotations)

	if !s.window.From.IsZero() && !s.window.To.IsZero() {
		blocked := s.engine.BlockedWeekdays(s.kind)
		if !blocked.IsEmpty() {
			s.window.Each(func(d generic.Date) bool {
				if blocked.Has(d.Weekday()) {
					marks[d] = MarkBlockedWeekday
				}
				return true
			})
		}
		holidaysBlock := s.engine.HolidaysBlock(s.kind)
		for _, h := range s.engine.Holidays(s.window) {
			if holidaysBlock {
				marks[h.Date] = MarkHoliday
			} else if _, taken := marks[h.Date]; !taken {
				marks[h.Date] = MarkAdvisoryHoliday
			}
		}
	}

	switch s.state {
	case StateSingleSelected:
		marks[s.rng.Start] = MarkSingle
	case StateRangeCommitted:
		if s.rng.Start.Equal(s.rng.End) {
			marks[s.rng.Start] = MarkSingle
			break
		}
		generic.Window{From: s.rng.Start, To: s.rng.End}.Each(func(d generic.Date) bool {
			marks[d] = MarkRangeInterior
			return true
		})
		marks[s.rng.Start] = MarkRangeStart
		marks[s.rng.End] = MarkRangeEnd
	}

	s.marks = marks
}
