// Package memory provides an in-memory timeoff.Repository and
// timeoff.UserLookup (for testing/dev). Records are held in the camelCase
// dialect, exactly as the first generation of the source API returned them.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/warp/absence-engine/timeoff"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu      sync.RWMutex
	entries []entry
	users   map[string]timeoff.User
	labels  timeoff.StatusLabels
	latency time.Duration
	nextID  int
}

type entry struct {
	id     string
	owner  string
	kind   timeoff.Kind
	record timeoff.RawRecord
}

var (
	_ timeoff.Repository = (*Store)(nil)
	_ timeoff.UserLookup = (*Store)(nil)
)

type Option func(*Store)

// WithLabels sets the status strings written by MutateStatus.
func WithLabels(labels timeoff.StatusLabels) Option {
	return func(s *Store) { s.labels = labels }
}

// WithLatency delays every call, like a remote backend would.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:  make(map[string]timeoff.User),
		labels: timeoff.DefaultStatusLabels(),
		nextID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeeded returns a store holding the demo users and one record of each shape.
func NewSeeded(opts ...Option) *Store {
	s := New(opts...)
	s.AddUser(timeoff.User{ID: "1", Name: "Mario", Surname: "Rossi", Email: "mario@synncpoint.it", Role: timeoff.RoleAdmin})
	s.AddUser(timeoff.User{ID: "2", Name: "Giulia", Surname: "Verdi", Email: "giulia@example.com", Role: timeoff.RoleEmployee})

	s.AddRecord(timeoff.RawRecord{"idRichiesta": 10, "idUtente": 1, "dataInizio": "2025-08-15T09:00:00", "dataFine": "2025-08-20T18:00:00", "statoApprovazione": "validato"})
	s.AddRecord(timeoff.RawRecord{"idRichiesta": 11, "idUtente": 2, "dataInizio": "2025-04-14", "dataFine": "2025-04-17", "statoApprovazione": "in attesa"})
	s.AddRecord(timeoff.RawRecord{"idmalattia": 55, "idutente": 1, "dataInizio": "2025-02-10", "dataFine": "2025-02-12", "statoApprovazione": "in attesa", "certificato": "XYZ-123"})
	s.AddRecord(timeoff.RawRecord{"idStraordinari": 99, "idutente": 1, "dataInizio": "2025-03-01T18:00:00", "dataFine": "2025-03-01T20:00:00", "statoApprovazione": "validato"})
	return s
}

// camel dialect keys per kind
var camelKeys = map[timeoff.Kind]struct{ id, owner string }{
	timeoff.KindHoliday:   {"idRichiesta", "idUtente"},
	timeoff.KindSickLeave: {"idmalattia", "idutente"},
	timeoff.KindOvertime:  {"idStraordinari", "idutente"},
}

// AddRecord stores a raw record as is. Records of an unknown shape are kept
// too (they reach the normalizer, which excludes them) but cannot be mutated.
func (s *Store) AddRecord(r timeoff.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{record: copyRecord(r)}
	for kind, keys := range camelKeys {
		if v, ok := r[keys.id]; ok && v != nil {
			e.kind = kind
			e.id = fmt.Sprint(v)
			e.owner = fmt.Sprint(r[keys.owner])
			break
		}
	}
	if n, err := strconv.Atoi(e.id); err == nil && n >= s.nextID {
		s.nextID = n + 1
	}
	s.entries = append(s.entries, e)
}

func (s *Store) AddUser(u timeoff.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// =============================================================================
// REPOSITORY (timeoff.Repository interface)
// =============================================================================

func (s *Store) FetchRequests(ctx context.Context, ownerID string) ([]timeoff.RawRecord, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]timeoff.RawRecord, 0, len(s.entries))
	for _, e := range s.entries {
		if ownerID != "" && e.owner != ownerID {
			continue
		}
		out = append(out, copyRecord(e.record))
	}
	return out, nil
}

func (s *Store) MutateStatus(ctx context.Context, requestID string, status timeoff.Status) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(requestID)
	if i < 0 {
		return timeoff.ErrRequestNotFound
	}
	s.entries[i].record["statoApprovazione"] = s.labels.Label(status)
	return nil
}

func (s *Store) CreateRequest(ctx context.Context, req timeoff.Request) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	keys, ok := camelKeys[req.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", timeoff.ErrUnsupportedKind, req.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	r := timeoff.RawRecord{
		keys.id:             id,
		keys.owner:          numericOrString(req.OwnerID),
		"dataInizio":        req.Start.String(),
		"dataFine":          req.End.String(),
		"statoApprovazione": s.labels.Label(timeoff.StatusPending),
	}
	if req.Note != "" {
		r["note"] = req.Note
	}
	switch req.Kind {
	case timeoff.KindSickLeave:
		if req.SickLeave != nil && req.SickLeave.Certificate != "" {
			r["certificato"] = req.SickLeave.Certificate
		}
	case timeoff.KindOvertime:
		if req.Overtime != nil && !req.Overtime.StartAt.IsZero() && !req.Overtime.EndAt.IsZero() {
			r["dataInizio"] = req.Overtime.StartAt.Format("2006-01-02T15:04:05")
			r["dataFine"] = req.Overtime.EndAt.Format("2006-01-02T15:04:05")
		}
	}

	s.entries = append(s.entries, entry{id: strconv.Itoa(id), owner: req.OwnerID, kind: req.Kind, record: r})
	return strconv.Itoa(id), nil
}

func (s *Store) DeleteRequest(ctx context.Context, requestID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(requestID)
	if i < 0 {
		return timeoff.ErrRequestNotFound
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

// =============================================================================
// USERS (timeoff.UserLookup interface)
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id string) (*timeoff.User, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.id != "" && e.id == id {
			return i
		}
	}
	return -1
}

func (s *Store) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func copyRecord(r timeoff.RawRecord) timeoff.RawRecord {
	out := make(timeoff.RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// numericOrString keeps ids numeric when they look numeric, like the source does.
func numericOrString(id string) any {
	if n, err := strconv.Atoi(id); err == nil {
		return n
	}
	return id
}
