/*
Package generic provides the calendar primitives shared by every other package.

PURPOSE:
  Dates in this system are calendar days, not instants. A request that starts
  on "2025-01-08" starts on that day everywhere, whatever the evaluating
  machine's clock offset. Date stores the civil year/month/day and converts to
  time.Time only at 12:00 UTC, so weekday and day arithmetic never drift
  across a midnight boundary.

KEY CONCEPTS IN THIS FILE (time.go):
  - Date:       A civil calendar day (comparable, usable as a map key)
  - Window:     An inclusive [From, To] span of dates
  - WeekdaySet: A set of weekdays (e.g., non-working days for a request kind)

USAGE:
  d, err := generic.ParseDate("2025-08-15T09:00:00") // time part is ignored
  d.Weekday()                                         // time.Friday
  d.AddDays(1).String()                               // "2025-08-16"

SEE ALSO:
  - holiday.go: Fixed holiday calendar
  - calendar/engine.go: Blocked-day rules built on these types
*/
package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Civil calendar day pinned to midday UTC
// =============================================================================

const dateLayout = "2006-01-02"

// Date is a calendar day. The zero value means "no date".
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate normalizes out-of-range values the way time.Date does (Jan 32 -> Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate accepts "YYYY-MM-DD" or any timestamp that begins with it
// ("2025-08-15T09:00:00", "2025-08-15 09:00"). Only the date part is used.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if rest := s[len(dateLayout):]; rest != "" && rest[0] != 'T' && rest[0] != ' ' {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// MustParseDate panics on malformed input. Use in tests and static tables.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns the date at 12:00 UTC.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Compare(other Date) int {
	switch {
	case d.Before(other):
		return -1
	case d.After(other):
		return 1
	default:
		return 0
	}
}
func (d Date) Before(other Date) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if d.month != other.month {
		return d.month < other.month
	}
	return d.day < other.day
}
func (d Date) After(other Date) bool         { return other.Before(d) }
func (d Date) Equal(other Date) bool         { return d == other }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

// Properties
func (d Date) Year() int                { return d.year }
func (d Date) Month() time.Month        { return d.month }
func (d Date) Day() int                 { return d.day }
func (d Date) Weekday() time.Weekday    { return d.Time().Weekday() }
func (d Date) IsZero() bool             { return d == Date{} }
func (d Date) SameMonthDay(o Date) bool { return d.month == o.month && d.day == o.day }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

// MarshalText encodes the date as "YYYY-MM-DD" (empty for the zero date).
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns to - from in whole days (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}

// =============================================================================
// WINDOW - Inclusive span of dates
// =============================================================================

type Window struct {
	From Date
	To   Date
}

func NewWindow(from, to Date) (Window, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return Window{}, fmt.Errorf("%w: %s..%s", ErrInvalidWindow, from, to)
	}
	return Window{From: from, To: to}, nil
}

// YearWindow covers January 1 through December 31 of year.
func YearWindow(year int) Window {
	return Window{From: NewDate(year, time.January, 1), To: NewDate(year, time.December, 31)}
}

func (w Window) Contains(d Date) bool { return w.From.BeforeOrEqual(d) && d.BeforeOrEqual(w.To) }

// Days returns the inclusive day count.
func (w Window) Days() int { return DaysBetween(w.From, w.To) + 1 }

// Each calls fn for every date in the window in order. Returning false stops the walk.
func (w Window) Each(fn func(Date) bool) {
	for d := w.From; d.BeforeOrEqual(w.To); d = d.AddDays(1) {
		if !fn(d) {
			return
		}
	}
}

// =============================================================================
// WEEKDAY SET
// =============================================================================

type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }
func (s WeekdaySet) IsEmpty() bool           { return s == 0 }

func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts English day names, full or three-letter, any case.
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}
