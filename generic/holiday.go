package generic

import "sort"

// =============================================================================
// HOLIDAY CALENDAR - Fixed company holidays
// =============================================================================

// Holiday is a closed day that requests may not (or should not) cover.
type Holiday struct {
	Date      Date
	Name      string // e.g., "Capodanno", "Ferragosto"
	Recurring bool   // true = same month/day every year
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday reports whether date is a holiday.
	IsHoliday(date Date) bool

	// HolidaysIn returns the holidays falling in w, ordered by date.
	// Recurring holidays are projected onto each year of the window.
	HolidaysIn(w Window) []Holiday
}

// HolidaySet is an immutable in-memory HolidayCalendar.
type HolidaySet struct {
	fixed     map[Date]Holiday
	recurring []Holiday
}

var _ HolidayCalendar = (*HolidaySet)(nil)

func NewHolidaySet(holidays ...Holiday) *HolidaySet {
	s := &HolidaySet{fixed: make(map[Date]Holiday, len(holidays))}
	for _, h := range holidays {
		if h.Date.IsZero() {
			continue
		}
		if h.Recurring {
			s.recurring = append(s.recurring, h)
			continue
		}
		s.fixed[h.Date] = h
	}
	return s
}

func (s *HolidaySet) IsHoliday(date Date) bool {
	if s == nil {
		return false
	}
	if _, ok := s.fixed[date]; ok {
		return true
	}
	for _, h := range s.recurring {
		if h.Date.SameMonthDay(date) {
			return true
		}
	}
	return false
}

func (s *HolidaySet) HolidaysIn(w Window) []Holiday {
	if s == nil {
		return nil
	}
	var out []Holiday
	for d, h := range s.fixed {
		if w.Contains(d) {
			out = append(out, h)
		}
	}
	for year := w.From.Year(); year <= w.To.Year(); year++ {
		for _, h := range s.recurring {
			d := NewDate(year, h.Date.Month(), h.Date.Day())
			// Feb 29 only recurs in leap years.
			if d.Month() != h.Date.Month() || !w.Contains(d) {
				continue
			}
			if _, dup := s.fixed[d]; dup {
				continue
			}
			out = append(out, Holiday{Date: d, Name: h.Name, Recurring: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// All returns every configured holiday as given, fixed ones first.
func (s *HolidaySet) All() []Holiday {
	if s == nil {
		return nil
	}
	out := make([]Holiday, 0, len(s.fixed)+len(s.recurring))
	for _, h := range s.fixed {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return append(out, s.recurring...)
}
