/*
normalize.go - Raw record -> Request mapping

PURPOSE:
  The system of record stores each request kind in its own table, and two
  generations of the API spell the columns differently. The Normalizer maps
  every shape onto the single Request model.

SHAPES (selected by which id field is present):
  holiday/camel    idRichiesta, idUtente, dataInizio, dataFine?, statoApprovazione?
  holiday/snake    id_richiesta, id_utente, data_inizio, data_fine, stato_approvazione
  sick/camel       idmalattia, idutente, dataInizio, dataFine?, statoApprovazione?, certificato?
  sick/snake       id_malattia, id_utente, data_inizio, data_fine, stato_approvazione, certificato
  overtime/camel   idStraordinari, idutente, dataInizio, dataFine?, statoApprovazione?
  overtime/snake   id_straordinari, id_utente, data_inizio, data_fine, stato_approvazione
  Every shape may also carry a free-text "note".

RULES:
  1. Numeric or string ids become string ids.
  2. Status goes through the StatusTable; unknown or absent -> Pending.
  3. Missing end date defaults to the start date.
  4. Missing id, owner id or start date excludes the record (logged).
  5. Ids are unique within a batch. A record reusing an id already taken by
     an earlier record (any shape) is excluded.
*/
package timeoff

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/warp/absence-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// SOURCE SHAPES
// =============================================================================

type holidayCamel struct {
	ID     string `mapstructure:"idRichiesta"`
	Owner  string `mapstructure:"idUtente"`
	Start  string `mapstructure:"dataInizio"`
	End    string `mapstructure:"dataFine"`
	Status string `mapstructure:"statoApprovazione"`
	Note   string `mapstructure:"note"`
}

type holidaySnake struct {
	ID     string `mapstructure:"id_richiesta"`
	Owner  string `mapstructure:"id_utente"`
	Start  string `mapstructure:"data_inizio"`
	End    string `mapstructure:"data_fine"`
	Status string `mapstructure:"stato_approvazione"`
	Note   string `mapstructure:"note"`
}

type sickCamel struct {
	ID          string `mapstructure:"idmalattia"`
	Owner       string `mapstructure:"idutente"`
	Start       string `mapstructure:"dataInizio"`
	End         string `mapstructure:"dataFine"`
	Status      string `mapstructure:"statoApprovazione"`
	Certificate string `mapstructure:"certificato"`
	Note        string `mapstructure:"note"`
}

type sickSnake struct {
	ID          string `mapstructure:"id_malattia"`
	Owner       string `mapstructure:"id_utente"`
	Start       string `mapstructure:"data_inizio"`
	End         string `mapstructure:"data_fine"`
	Status      string `mapstructure:"stato_approvazione"`
	Certificate string `mapstructure:"certificato"`
	Note        string `mapstructure:"note"`
}

type overtimeCamel struct {
	ID     string `mapstructure:"idStraordinari"`
	Owner  string `mapstructure:"idutente"`
	Start  string `mapstructure:"dataInizio"`
	End    string `mapstructure:"dataFine"`
	Status string `mapstructure:"statoApprovazione"`
	Note   string `mapstructure:"note"`
}

type overtimeSnake struct {
	ID     string `mapstructure:"id_straordinari"`
	Owner  string `mapstructure:"id_utente"`
	Start  string `mapstructure:"data_inizio"`
	End    string `mapstructure:"data_fine"`
	Status string `mapstructure:"stato_approvazione"`
	Note   string `mapstructure:"note"`
}

// fields is the dialect-free view of a decoded record, plus the source key
// names used in error reports.
type fields struct {
	id, owner, start, end, status, certificate, note string
	startKey, endKey                                  string
}

type shape struct {
	name   string
	kind   Kind
	marker string
	decode func(RawRecord) (fields, error)
}

var shapes = []shape{
	{name: "holiday/camel", kind: KindHoliday, marker: "idRichiesta", decode: func(r RawRecord) (fields, error) {
		var s holidayCamel
		err := decodeRecord(r, &s)
		return fields{id: s.ID, owner: s.Owner, start: s.Start, end: s.End, status: s.Status, note: s.Note,
			startKey: "dataInizio", endKey: "dataFine"}, err
	}},
	{name: "holiday/snake", kind: KindHoliday, marker: "id_richiesta", decode: func(r RawRecord) (fields, error) {
		var s holidaySnake
		err := decodeRecord(r, &s)
		return fields{id: s.ID, owner: s.Owner, start: s.Start, end: s.End, status: s.Status, note: s.Note,
			startKey: "data_inizio", endKey: "data_fine"}, err
	}},
	{name: "sick/camel", kind: KindSickLeave, marker: "idmalattia", decode: func(r RawRecord) (fields, error) {
		var s sickCamel
		err := decodeRecord(r, &s)
		return fields{id: s.ID, owner: s.Owner, start: s.Start, end: s.End, status: s.Status,
			certificate: s.Certificate, note: s.Note, startKey: "dataInizio", endKey: "dataFine"}, err
	}},
	{name: "sick/snake", kind: KindSickLeave, marker: "id_malattia", decode: func(r RawRecord) (fields, error) {
		var s sickSnake
		err := decodeRecord(r, &s)
		return fields{id: s.ID, owner: s.Owner, start: s.Start, end: s.End, status: s.Status,
			certificate: s.Certificate, note: s.Note, startKey: "data_inizio", endKey: "data_fine"}, err
	}},
	{name: "overtime/camel", kind: KindOvertime, marker: "idStraordinari", decode: func(r RawRecord) (fields, error) {
		var s overtimeCamel
		err := decodeRecord(r, &s)
		return fields{id: s.ID, owner: s.Owner, start: s.Start, end: s.End, status: s.Status, note: s.Note,
			startKey: "dataInizio", endKey: "dataFine"}, err
	}},
	{name: "overtime/snake", kind: KindOvertime, marker: "id_straordinari", decode: func(r RawRecord) (fields, error) {
		var s overtimeSnake
		err := decodeRecord(r, &s)
		return fields{id: s.ID, owner: s.Owner, start: s.Start, end: s.End, status: s.Status, note: s.Note,
			startKey: "data_inizio", endKey: "data_fine"}, err
	}},
}

// decodeRecord decodes loosely: numbers become strings, time.Time values
// become timestamps, nil stays empty, unknown keys are ignored.
func decodeRecord(r RawRecord, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       timeToStringHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(r))
}

func timeToStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t.UTC().Format("2006-01-02T15:04:05"), nil
	}
	return data, nil
}

func detectShape(r RawRecord) (shape, error) {
	var found []shape
	for _, s := range shapes {
		if v, ok := r[s.marker]; ok && v != nil {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return shape{}, ErrUnknownShape
	case 1:
		return found[0], nil
	default:
		return shape{}, fmt.Errorf("%w: matches %s and %s", ErrUnknownShape, found[0].name, found[1].name)
	}
}

// =============================================================================
// NORMALIZER
// =============================================================================

type Normalizer struct {
	statuses StatusTable
	logger   *zap.Logger
}

func NewNormalizer(statuses StatusTable, logger ...*zap.Logger) *Normalizer {
	l := zap.L().Named("timeoff.normalizer")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("timeoff.normalizer")
	}
	return &Normalizer{statuses: statuses, logger: l}
}

// Normalize maps one raw record. Errors are *RecordError.
func (n *Normalizer) Normalize(r RawRecord) (Request, error) {
	return n.normalize(0, r)
}

// NormalizeAll maps a batch. Records that fail are logged, reported in the
// returned error slice and left out; they never stop the rest of the batch.
func (n *Normalizer) NormalizeAll(records []RawRecord) ([]Request, []error) {
	out := make([]Request, 0, len(records))
	var errs []error
	seen := make(map[string]int, len(records))
	for i, r := range records {
		req, err := n.normalize(i, r)
		if err == nil {
			if first, dup := seen[req.ID]; dup {
				s, _ := detectShape(r)
				err = &RecordError{Index: i, Shape: s.name, Field: s.marker,
					Err: fmt.Errorf("%w: %s already used by record %d", ErrDuplicateID, req.ID, first)}
			} else {
				seen[req.ID] = i
			}
		}
		if err != nil {
			n.logger.Warn("record excluded from normalization", zap.Int("index", i), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		out = append(out, req)
	}
	return out, errs
}

func (n *Normalizer) normalize(index int, r RawRecord) (Request, error) {
	s, err := detectShape(r)
	if err != nil {
		return Request{}, &RecordError{Index: index, Err: err}
	}
	f, err := s.decode(r)
	if err != nil {
		return Request{}, &RecordError{Index: index, Shape: s.name, Err: fmt.Errorf("%w: %v", ErrInvalidRecord, err)}
	}

	fail := func(field string, err error) (Request, error) {
		return Request{}, &RecordError{Index: index, Shape: s.name, Field: field, Err: err}
	}
	switch {
	case f.id == "":
		return fail(s.marker, ErrMissingField)
	case f.owner == "":
		return fail("owner", ErrMissingField)
	case f.start == "":
		return fail(f.startKey, ErrMissingField)
	}

	start, err := generic.ParseDate(f.start)
	if err != nil {
		return fail(f.startKey, fmt.Errorf("%w: %v", ErrInvalidRecord, err))
	}
	endRaw := f.end
	if endRaw == "" {
		endRaw = f.start
	}
	end, err := generic.ParseDate(endRaw)
	if err != nil {
		return fail(f.endKey, fmt.Errorf("%w: %v", ErrInvalidRecord, err))
	}
	if end.Before(start) {
		return fail(f.endKey, fmt.Errorf("%w: end %s before start %s", ErrInvalidRecord, end, start))
	}

	req := Request{
		ID:      f.id,
		OwnerID: f.owner,
		Kind:    s.kind,
		Status:  n.statuses.Lookup(f.status),
		Start:   start,
		End:     end,
		Note:    f.note,
	}
	switch s.kind {
	case KindSickLeave:
		req.SickLeave = &SickLeaveDetail{Certificate: f.certificate}
	case KindOvertime:
		req.Overtime = &OvertimeDetail{StartAt: parseTimestamp(f.start), EndAt: parseTimestamp(endRaw)}
	}
	return req, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp returns the zero time for date-only or malformed values.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
