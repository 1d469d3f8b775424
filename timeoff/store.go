/*
store.go - Normalized request collection and approval workflow

PURPOSE:
  Store holds the normalized requests a consumer is looking at, answers the
  sent/received views and runs the approval workflow against the Repository.

WORKFLOW:
  ┌─────────┐  approve (admin)  ┌──────────┐
  │ Pending │ ────────────────▶ │ Approved │  terminal
  │         │  reject (admin)   ├──────────┤
  │         │ ────────────────▶ │ Rejected │  terminal
  └─────────┘                   └──────────┘

  A successful mutation is never applied locally. The store re-fetches and
  trusts whatever the system of record reports. A failed mutation leaves the
  last fetched status in place.

CONCURRENCY:
  - Loads are coalesced per filter key (singleflight). A load that finishes
    after a newer one has started is discarded.
  - Approve/reject on the same id while one is running fails with
    ErrActionInProgress.
  - Consumers only ever get copies of the collection.

SEE ALSO:
  - normalize.go: Raw record mapping used by every load
  - repository.go: Repository and UserLookup contracts
*/
package timeoff

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// VIEWS
// =============================================================================

type Perspective string

const (
	// PerspectiveSent lists the viewer's own requests.
	PerspectiveSent Perspective = "sent"
	// PerspectiveReceived lists everyone else's requests. Admins only.
	PerspectiveReceived Perspective = "received"
)

func ParsePerspective(s string) (Perspective, bool) {
	switch Perspective(s) {
	case PerspectiveSent, PerspectiveReceived:
		return Perspective(s), true
	}
	return "", false
}

type LoadState int

const (
	NotLoaded LoadState = iota
	Loaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load_failed"
	default:
		return "not_loaded"
	}
}

// Snapshot is a read-only copy of the store's current state.
type Snapshot struct {
	State    LoadState
	Loading  bool   // a load is in flight
	Filter   string // owner filter of the held collection, empty for all
	Requests []Request
	Err      error // set when State == LoadFailed
}

// FilterFor returns the owner filter a viewer loads with: admins see every
// record, everybody else only their own.
func FilterFor(viewer User) string {
	if viewer.IsAdmin() {
		return ""
	}
	return viewer.ID
}

// =============================================================================
// STORE
// =============================================================================

type Store struct {
	repo       Repository
	users      UserLookup
	normalizer *Normalizer
	logger     *zap.Logger

	sf singleflight.Group

	mu        sync.RWMutex
	state     LoadState
	filter    string
	requests  []Request
	loadErr   error
	started   uint64 // sequence of the most recently started load
	committed uint64 // sequence of the load whose result is held
	inflight  int

	// mutations counts successful writes; flights records, per filter key,
	// the load running now and the mutation count when it started.
	mutations uint64
	flights   map[string]flight

	actionsMu sync.Mutex
	actions   map[string]struct{}
}

func NewStore(repo Repository, users UserLookup, normalizer *Normalizer, logger ...*zap.Logger) *Store {
	l := zap.L().Named("timeoff.store")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("timeoff.store")
	}
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultStatusTable(), l)
	}
	return &Store{
		repo:       repo,
		users:      users,
		normalizer: normalizer,
		logger:     l,
		actions:    make(map[string]struct{}),
		flights:    make(map[string]flight),
	}
}

type flight struct {
	seq       uint64
	mutations uint64
}

// Load replaces the held collection with the records visible to viewer.
// Concurrent loads for the same filter share one repository round trip.
// On failure the store moves to LoadFailed and the error is a *LoadError.
func (s *Store) Load(ctx context.Context, viewer User) error {
	return s.load(ctx, FilterFor(viewer), 0)
}

// Refresh re-fetches with the filter of the held collection. It joins a
// running fetch unless this store wrote to the repository after that fetch
// started.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	need := s.mutations
	s.mu.RUnlock()
	return s.refreshAfter(ctx, need)
}

// mutated records a successful write and returns the new mutation count.
func (s *Store) mutated() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	return s.mutations
}

func filterKey(filter string) string {
	if filter == "" {
		return "all"
	}
	return "owner:" + filter
}

// load runs at most one fetch per filter key. A running fetch is joined only
// when it started after the first need mutations; otherwise a new round trip
// replaces it.
func (s *Store) load(ctx context.Context, filter string, need uint64) error {
	key := filterKey(filter)
	s.mu.RLock()
	f, running := s.flights[key]
	s.mu.RUnlock()
	if running && f.mutations < need {
		s.sf.Forget(key)
	}
	// The shared flight must not die with whichever caller started it.
	flightCtx := context.WithoutCancel(ctx)

	_, err, shared := s.sf.Do(key, func() (any, error) {
		s.mu.Lock()
		s.started++
		seq := s.started
		s.inflight++
		s.flights[key] = flight{seq: seq, mutations: s.mutations}
		s.mu.Unlock()

		raw, err := s.repo.FetchRequests(flightCtx, filter)
		if err != nil {
			lerr := &LoadError{Filter: filter, Err: err}
			s.logger.Error("load requests failed", zap.String("filter", key), zap.Error(err))
			s.commit(seq, filter, nil, lerr)
			return nil, lerr
		}

		requests, recordErrs := s.normalizer.NormalizeAll(raw)
		requests = ResolveNames(flightCtx, s.users, requests, s.logger)
		s.logger.Debug("requests loaded",
			zap.String("filter", key),
			zap.Int("records", len(raw)),
			zap.Int("requests", len(requests)),
			zap.Int("excluded", len(recordErrs)),
		)
		s.commit(seq, filter, requests, nil)
		return nil, nil
	})
	if shared {
		s.logger.Debug("joined in-flight load", zap.String("filter", key))
	}
	return err
}

func (s *Store) commit(seq uint64, filter string, requests []Request, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if f, ok := s.flights[filterKey(filter)]; ok && f.seq == seq {
		delete(s.flights, filterKey(filter))
	}
	if seq != s.started || seq < s.committed {
		// A newer load has started; its result wins.
		s.logger.Debug("discarding superseded load", zap.String("filter", filterKey(filter)))
		return
	}
	s.committed = seq
	s.filter = filter
	if err != nil {
		s.state = LoadFailed
		s.loadErr = err
		s.requests = nil
		return
	}
	s.state = Loaded
	s.loadErr = nil
	s.requests = requests
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:    s.state,
		Loading:  s.inflight > 0,
		Filter:   s.filter,
		Requests: copyRequests(s.requests, func(Request) bool { return true }),
		Err:      s.loadErr,
	}
}

// Get returns a copy of the held request with id.
func (s *Store) Get(id string) (Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return Request{}, false
}

// ListFor returns the requests user sees from perspective p.
// Received is admin-only and never contains the admin's own requests; for
// anyone else it is empty, not an error.
func (s *Store) ListFor(user User, p Perspective) []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch p {
	case PerspectiveSent:
		return copyRequests(s.requests, func(r Request) bool { return r.OwnerID == user.ID })
	case PerspectiveReceived:
		if !user.IsAdmin() {
			return []Request{}
		}
		return copyRequests(s.requests, func(r Request) bool { return r.OwnerID != user.ID })
	default:
		return []Request{}
	}
}

func copyRequests(in []Request, keep func(Request) bool) []Request {
	out := make([]Request, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

// Approve moves a pending request to Approved. actor must be an admin.
func (s *Store) Approve(ctx context.Context, actor User, requestID string) error {
	return s.transition(ctx, actor, requestID, StatusApproved, "approve")
}

// Reject moves a pending request to Rejected. actor must be an admin.
func (s *Store) Reject(ctx context.Context, actor User, requestID string) error {
	return s.transition(ctx, actor, requestID, StatusRejected, "reject")
}

func (s *Store) transition(ctx context.Context, actor User, requestID string, to Status, action string) error {
	log := s.logger.With(
		zap.String("action", action),
		zap.String("request_id", requestID),
		zap.String("actor_id", actor.ID),
	)

	if !actor.IsAdmin() {
		log.Warn("approval workflow refused", zap.String("role", string(actor.Role)))
		return fmt.Errorf("%s request %s: %w", action, requestID, ErrUnauthorized)
	}

	release, err := s.acquire(requestID)
	if err != nil {
		log.Warn("concurrent action refused")
		return fmt.Errorf("%s request %s: %w", action, requestID, err)
	}
	defer release()

	current, ok := s.Get(requestID)
	if !ok {
		return fmt.Errorf("%s request %s: %w", action, requestID, ErrRequestNotFound)
	}
	if !CanTransition(current.Status, to) {
		log.Info("illegal transition refused", zap.String("status", string(current.Status)))
		return &TransitionError{RequestID: requestID, From: current.Status, To: to}
	}

	if err := s.repo.MutateStatus(ctx, requestID, to); err != nil {
		log.Error("status mutation failed", zap.Error(err))
		return &ActionError{Action: action, RequestID: requestID, Err: err}
	}
	log.Info("request status changed", zap.String("status", string(to)))

	return s.refreshAfter(ctx, s.mutated())
}

// acquire marks requestID busy. The returned func releases it.
func (s *Store) acquire(requestID string) (func(), error) {
	s.actionsMu.Lock()
	defer s.actionsMu.Unlock()
	if _, busy := s.actions[requestID]; busy {
		return nil, ErrActionInProgress
	}
	s.actions[requestID] = struct{}{}
	return func() {
		s.actionsMu.Lock()
		delete(s.actions, requestID)
		s.actionsMu.Unlock()
	}, nil
}

// =============================================================================
// CREATE / DELETE - Outside the status state machine
// =============================================================================

// Create submits a new Pending request owned by actor and re-fetches.
func (s *Store) Create(ctx context.Context, actor User, req Request) (string, error) {
	if actor.ID == "" {
		return "", fmt.Errorf("create request: %w", ErrUnauthorized)
	}
	req.OwnerID = actor.ID
	req.Status = StatusPending
	req.RequesterName = ""
	if req.End.IsZero() {
		req.End = req.Start
	}
	if req.Start.IsZero() || req.End.Before(req.Start) {
		return "", fmt.Errorf("create request: %w: start %s, end %s", ErrInvalidRecord, req.Start, req.End)
	}

	id, err := s.repo.CreateRequest(ctx, req)
	if err != nil {
		s.logger.Error("create request failed", zap.String("owner_id", actor.ID), zap.Error(err))
		return "", &ActionError{Action: "create", RequestID: id, Err: err}
	}
	s.logger.Info("request created", zap.String("request_id", id), zap.String("kind", string(req.Kind)))
	need := s.mutated()
	if s.hasLoaded() {
		return id, s.refreshAfter(ctx, need)
	}
	return id, nil
}

// Delete removes a request. Owners may delete their own requests; admins any.
func (s *Store) Delete(ctx context.Context, actor User, requestID string) error {
	current, ok := s.Get(requestID)
	if !ok {
		return fmt.Errorf("delete request %s: %w", requestID, ErrRequestNotFound)
	}
	if !actor.IsAdmin() && current.OwnerID != actor.ID {
		return fmt.Errorf("delete request %s: %w", requestID, ErrUnauthorized)
	}

	release, err := s.acquire(requestID)
	if err != nil {
		return fmt.Errorf("delete request %s: %w", requestID, err)
	}
	defer release()

	if err := s.repo.DeleteRequest(ctx, requestID); err != nil {
		s.logger.Error("delete request failed", zap.String("request_id", requestID), zap.Error(err))
		return &ActionError{Action: "delete", RequestID: requestID, Err: err}
	}
	s.logger.Info("request deleted", zap.String("request_id", requestID), zap.String("actor_id", actor.ID))
	return s.refreshAfter(ctx, s.mutated())
}

func (s *Store) refreshAfter(ctx context.Context, need uint64) error {
	s.mu.RLock()
	filter := s.filter
	s.mu.RUnlock()
	return s.load(ctx, filter, need)
}

func (s *Store) hasLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != NotLoaded
}
