/*
Package factory builds the engine's rule configuration from a document.

PURPOSE:
  The holiday set, the per-kind weekday restrictions and the status string
  tables change more often than the code that applies them. They live in a
  YAML (or JSON) document that the factory validates and converts into
  calendar.Rules, timeoff.StatusTable and timeoff.StatusLabels.

DOCUMENT SCHEMA:
  holidays:
    - {date: "2025-01-01", name: "Capodanno"}
    - {date: "2025-12-25", name: "Natale", recurring: true}
  kinds:
    holiday:    {blocked_weekdays: [fri, sat]}
    sick_leave: {advisory_holidays: true}
  statuses:          # source string -> status, case-insensitive
    validato: approved
    annullato: rejected
  labels:            # status -> string written back to the source
    approved: validato

  Kinds missing from the document have no rule, so nothing blocks them.
  An absent statuses/labels section falls back to the built-in tables.
  Every label must read back through statuses as the status it labels.

USAGE:
  rules, err := factory.ParseRules(data)
  engine := calendar.NewEngine(rules.Calendar)
  normalizer := timeoff.NewNormalizer(rules.Statuses)

SEE ALSO:
  - calendar/engine.go: How the rules are applied
  - timeoff/status.go: Status tables
*/
package factory

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/warp/absence-engine/calendar"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRules = errors.New("invalid rules document")

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// RulesJSON is the document form of the rule configuration. The yaml decoder
// reads JSON too, so one set of tags serves both.
type RulesJSON struct {
	Holidays []HolidayJSON           `yaml:"holidays" json:"holidays" validate:"dive"`
	Kinds    map[string]KindRuleJSON `yaml:"kinds" json:"kinds" validate:"dive,keys,required,endkeys"`
	Statuses map[string]string       `yaml:"statuses,omitempty" json:"statuses,omitempty" validate:"dive,keys,required,endkeys,oneof=pending approved rejected"`
	Labels   map[string]string       `yaml:"labels,omitempty" json:"labels,omitempty" validate:"dive,keys,oneof=pending approved rejected,endkeys,required"`
}

type HolidayJSON struct {
	Date      string `yaml:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `yaml:"name" json:"name"`
	Recurring bool   `yaml:"recurring,omitempty" json:"recurring,omitempty"`
}

type KindRuleJSON struct {
	BlockedWeekdays  []string `yaml:"blocked_weekdays,omitempty" json:"blocked_weekdays,omitempty" validate:"dive,oneof=sun mon tue wed thu fri sat sunday monday tuesday wednesday thursday friday saturday"`
	AdvisoryHolidays bool     `yaml:"advisory_holidays,omitempty" json:"advisory_holidays,omitempty"`
}

// Rules is everything ParseRules produces.
type Rules struct {
	Calendar calendar.Rules
	Statuses timeoff.StatusTable
	Labels   timeoff.StatusLabels
	Holidays []generic.Holiday // as configured, in document order
}

// =============================================================================
// RULES FACTORY
// =============================================================================

var validate = validator.New()

// ParseRules parses and validates a YAML or JSON rules document.
func ParseRules(data []byte) (*Rules, error) {
	var rj RulesJSON
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return FromJSON(rj)
}

// LoadRules reads a rules document from disk.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// FromJSON converts a decoded document.
func FromJSON(rj RulesJSON) (*Rules, error) {
	if err := validate.Struct(rj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	holidays := make([]generic.Holiday, 0, len(rj.Holidays))
	for _, hj := range rj.Holidays {
		date, err := generic.ParseDate(hj.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: holiday %q: %v", ErrInvalidRules, hj.Name, err)
		}
		holidays = append(holidays, generic.Holiday{Date: date, Name: hj.Name, Recurring: hj.Recurring})
	}

	kinds := make(map[timeoff.Kind]calendar.KindRule, len(rj.Kinds))
	for name, kj := range rj.Kinds {
		kind := timeoff.Kind(strings.TrimSpace(name))
		if !kind.IsKnown() {
			return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRules, name)
		}
		var days []time.Weekday
		for _, wd := range kj.BlockedWeekdays {
			day, err := generic.ParseWeekday(wd)
			if err != nil {
				return nil, fmt.Errorf("%w: kind %s: %v", ErrInvalidRules, name, err)
			}
			days = append(days, day)
		}
		kinds[kind] = calendar.KindRule{
			BlockedWeekdays:  generic.NewWeekdaySet(days...),
			AdvisoryHolidays: kj.AdvisoryHolidays,
		}
	}

	statuses := timeoff.DefaultStatusTable()
	if len(rj.Statuses) > 0 {
		entries := make(map[string]timeoff.Status, len(rj.Statuses))
		for label, status := range rj.Statuses {
			entries[label] = timeoff.Status(status)
		}
		statuses = timeoff.NewStatusTable(entries)
	}

	labels := timeoff.DefaultStatusLabels()
	for status, label := range rj.Labels {
		labels[timeoff.Status(status)] = label
	}

	if err := checkWriteBack(statuses, labels); err != nil {
		return nil, err
	}

	return &Rules{
		Calendar: calendar.Rules{Holidays: generic.NewHolidaySet(holidays...), Kinds: kinds},
		Statuses: statuses,
		Labels:   labels,
		Holidays: holidays,
	}, nil
}

// checkWriteBack makes sure every label written back to the source reads
// back as the status it was written for.
func checkWriteBack(statuses timeoff.StatusTable, labels timeoff.StatusLabels) error {
	for _, st := range []timeoff.Status{timeoff.StatusPending, timeoff.StatusApproved, timeoff.StatusRejected} {
		label := labels.Label(st)
		if got := statuses.Lookup(label); got != st {
			return fmt.Errorf("%w: %s is written as %q, which reads back as %s", ErrInvalidRules, st, label, got)
		}
	}
	return nil
}

// ToJSON converts rules back to document form. Status tables are not
// included; only the calendar part round-trips.
func ToJSON(r *Rules) RulesJSON {
	rj := RulesJSON{Kinds: make(map[string]KindRuleJSON, len(r.Calendar.Kinds))}
	for _, h := range r.Holidays {
		rj.Holidays = append(rj.Holidays, HolidayJSON{Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring})
	}
	for kind, rule := range r.Calendar.Kinds {
		kj := KindRuleJSON{AdvisoryHolidays: rule.AdvisoryHolidays}
		for _, d := range rule.BlockedWeekdays.Days() {
			kj.BlockedWeekdays = append(kj.BlockedWeekdays, strings.ToLower(d.String()[:3]))
		}
		rj.Kinds[string(kind)] = kj
	}
	return rj
}

// AddHolidays extends the holiday set, e.g., with holidays kept in a database.
func (r *Rules) AddHolidays(extra ...generic.Holiday) {
	if len(extra) == 0 {
		return
	}
	r.Holidays = append(r.Holidays, extra...)
	r.Calendar.Holidays = generic.NewHolidaySet(r.Holidays...)
}

// KindNames lists the configured kinds in name order.
func (r *Rules) KindNames() []string {
	out := make([]string, 0, len(r.Calendar.Kinds))
	for k := range r.Calendar.Kinds {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// BUILT-IN RULES
// =============================================================================

// DefaultRulesYAML is the configuration the source system shipped with: the
// 2025 national holidays, Friday and Saturday off-limits for holiday requests,
// holidays advisory for sick leave and overtime.
const DefaultRulesYAML = `
holidays:
  - {date: "2025-01-01", name: "Capodanno"}
  - {date: "2025-04-25", name: "Festa della Liberazione"}
  - {date: "2025-05-01", name: "Festa del Lavoro"}
  - {date: "2025-08-15", name: "Ferragosto"}
  - {date: "2025-12-25", name: "Natale"}
kinds:
  holiday:
    blocked_weekdays: [fri, sat]
  sick_leave:
    advisory_holidays: true
  overtime:
    advisory_holidays: true
statuses:
  validato: approved
  approvata: approved
  annullato: rejected
  rifiutata: rejected
labels:
  pending: in attesa
  approved: validato
  rejected: annullato
`

// DefaultRules parses DefaultRulesYAML.
func DefaultRules() *Rules {
	r, err := ParseRules([]byte(DefaultRulesYAML))
	if err != nil {
		panic(fmt.Sprintf("built-in rules: %v", err))
	}
	return r
}
