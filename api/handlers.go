/*
handlers.go - HTTP API handlers for absence requests and calendar selection

PURPOSE:
  Exposes the request workflow and the calendar rule engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  timeoff and calendar packages.

ENDPOINTS:
  Session:
    GET    /api/me                       Authenticated user

  Requests:
    GET    /api/requests?view=sent       Own requests (default)
    GET    /api/requests?view=received   Others' requests (admins only, else empty)
    POST   /api/requests                 Submit a request (checked against the calendar rules)
    DELETE /api/requests/{id}            Delete (owner or admin)
    POST   /api/requests/{id}/approve    Approve a pending request (admin)
    POST   /api/requests/{id}/reject     Reject a pending request (admin)

  Calendar:
    GET    /api/calendar?kind=&year=     Rule annotations for a year
    POST   /api/calendar/tap             Apply one tap to a client-held selection
    GET    /api/holidays?year=           Holidays in a year

ARCHITECTURE:
  Handler holds the collaborators and one timeoff.Store per view filter:
  every admin shares the unfiltered store, every other user has their own.
  Each read loads through the store, so concurrent reads of the same view
  share one repository round trip.

AUTHENTICATION:
  The authenticated-user collaborator is header based: X-User-ID names the
  caller and is resolved through the UserLookup. Missing or unknown ids get
  401. Real deployments put an authenticating proxy in front.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No authenticated user
  - 403: Not permitted (non-admin approval, foreign delete)
  - 404: Request not found
  - 409: Illegal transition, action already in progress
  - 422: Calendar rule violation, kind that cannot be stored
  - 502: Repository rejected a mutation
  - 503: Loading requests failed

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - timeoff/store.go: Workflow rules
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/absence-engine/calendar"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
	"go.uber.org/zap"
)

// DefaultUserHeader carries the authenticated user id unless configured otherwise.
const DefaultUserHeader = "X-User-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	repo       timeoff.Repository
	users      timeoff.UserLookup
	normalizer *timeoff.Normalizer
	engine     *calendar.Engine
	validate   *validator.Validate
	logger     *zap.Logger

	viewsMu sync.Mutex
	views   map[string]*timeoff.Store

	// UserHeader names the header holding the authenticated user id.
	UserHeader string

	// Now is the clock used for default years. Tests replace it.
	Now func() time.Time
}

// NewHandler creates a handler. rules supplies the calendar rules and the
// status lookup table the normalizer uses.
func NewHandler(repo timeoff.Repository, users timeoff.UserLookup, rules *factory.Rules, logger ...*zap.Logger) *Handler {
	l := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	l = l.Named("api")

	return &Handler{
		repo:       repo,
		users:      users,
		normalizer: timeoff.NewNormalizer(rules.Statuses, l),
		engine:     calendar.NewEngine(rules.Calendar),
		validate:   newValidator(),
		logger:     l,
		views:      make(map[string]*timeoff.Store),
		UserHeader: DefaultUserHeader,
		Now:        time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("request_kind", func(fl validator.FieldLevel) bool {
		return timeoff.Kind(fl.Field().String()).IsKnown()
	})
	return v
}

// viewFor returns the store holding the requests user may see.
func (h *Handler) viewFor(user timeoff.User) *timeoff.Store {
	key := timeoff.FilterFor(user)
	h.viewsMu.Lock()
	defer h.viewsMu.Unlock()
	store, ok := h.views[key]
	if !ok {
		store = timeoff.NewStore(h.repo, h.users, h.normalizer, h.logger)
		h.views[key] = store
	}
	return store
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

type userKey struct{}

// Authenticate resolves the user header and stores the user in the
// request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(h.UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Missing "+h.UserHeader+" header", nil)
			return
		}
		user, err := h.users.GetUser(r.Context(), id)
		if err != nil {
			h.logger.Error("user lookup failed", zap.String("user_id", id), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Failed to resolve user", err)
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "Unknown user", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, *user)))
	})
}

// UserFrom returns the authenticated user of a request context.
func UserFrom(ctx context.Context) (timeoff.User, bool) {
	u, ok := ctx.Value(userKey{}).(timeoff.User)
	return u, ok
}

func mustUser(r *http.Request) timeoff.User {
	u, _ := UserFrom(r.Context())
	return u
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Me returns the authenticated user.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserDTO(mustUser(r)))
}

// Health reports that the server is up.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests returns the sent or received view of the caller.
// GET /api/requests?view=sent|received
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)

	view := timeoff.PerspectiveSent
	if v := r.URL.Query().Get("view"); v != "" {
		p, ok := timeoff.ParsePerspective(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid view (use sent or received)", nil)
			return
		}
		view = p
	}

	store := h.viewFor(user)
	if err := store.Load(r.Context(), user); err != nil {
		h.writeDomainError(w, err)
		return
	}

	requests := store.ListFor(user, view)
	writeJSON(w, http.StatusOK, RequestListResponse{
		View:     string(view),
		Requests: toRequestDTOs(requests),
		Count:    len(requests),
	})
}

// CreateRequest submits a new request owned by the caller. The range is
// checked against the calendar rules first.
// POST /api/requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)

	var body CreateRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	if v := h.engine.RangeViolations(req.Start, req.End, req.Kind); len(v) > 0 {
		err := &calendar.SelectionError{
			Reason:     calendar.ReasonRangeRejected,
			Kind:       req.Kind,
			Date:       req.End,
			Start:      req.Start,
			Violations: v,
		}
		writeError(w, http.StatusUnprocessableEntity, err.Message(), err)
		return
	}

	store := h.viewFor(user)
	if err := store.Load(r.Context(), user); err != nil {
		h.writeDomainError(w, err)
		return
	}

	id, err := store.Create(r.Context(), user, req)
	if err != nil && id == "" {
		h.writeDomainError(w, err)
		return
	}
	// A failed refetch after a successful create still created the request.
	resp := CreatedResponse{ID: id}
	if created, ok := store.Get(id); ok {
		dto := toRequestDTO(created)
		resp.Request = &dto
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (c CreateRequest) toRequest() (timeoff.Request, error) {
	start, err := generic.ParseDate(c.StartDate)
	if err != nil {
		return timeoff.Request{}, err
	}
	end := start
	if c.EndDate != "" {
		if end, err = generic.ParseDate(c.EndDate); err != nil {
			return timeoff.Request{}, err
		}
	}
	if end.Before(start) {
		return timeoff.Request{}, fmt.Errorf("%w: end_date %s is before start_date %s", calendar.ErrInvalidRange, end, start)
	}

	req := timeoff.Request{
		Kind:  timeoff.Kind(c.Kind),
		Start: start,
		End:   end,
		Note:  strings.TrimSpace(c.Note),
	}
	switch req.Kind {
	case timeoff.KindSickLeave:
		req.SickLeave = &timeoff.SickLeaveDetail{Certificate: strings.TrimSpace(c.Certificate)}
	case timeoff.KindOvertime:
		req.Overtime = &timeoff.OvertimeDetail{}
		if c.OvertimeStart != "" {
			if req.Overtime.StartAt, err = time.Parse(time.RFC3339, c.OvertimeStart); err != nil {
				return timeoff.Request{}, err
			}
			if req.Overtime.EndAt, err = time.Parse(time.RFC3339, c.OvertimeEnd); err != nil {
				return timeoff.Request{}, err
			}
			if !req.Overtime.EndAt.After(req.Overtime.StartAt) {
				return timeoff.Request{}, fmt.Errorf("%w: overtime_end must be after overtime_start", calendar.ErrInvalidRange)
			}
			// The timestamps are what gets stored, so they must fall on the
			// days the rules were checked against.
			if !generic.DateOf(req.Overtime.StartAt).Equal(start) || !generic.DateOf(req.Overtime.EndAt).Equal(end) {
				return timeoff.Request{}, fmt.Errorf("%w: overtime_start and overtime_end must fall on start_date and end_date", calendar.ErrInvalidRange)
			}
		}
	}
	return req, nil
}

// DeleteRequest deletes a request of the caller (any request for admins).
// DELETE /api/requests/{id}
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	id := chi.URLParam(r, "id")

	store := h.viewFor(user)
	if err := store.Load(r.Context(), user); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := store.Delete(r.Context(), user, id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest approves a pending request.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*timeoff.Store).Approve)
}

// RejectRequest rejects a pending request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*timeoff.Store).Reject)
}

type transitionFunc func(s *timeoff.Store, ctx context.Context, actor timeoff.User, requestID string) error

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	user := mustUser(r)
	id := chi.URLParam(r, "id")

	if !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "Only admins can approve or reject requests", timeoff.ErrUnauthorized)
		return
	}

	store := h.viewFor(user)
	if err := store.Load(r.Context(), user); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := apply(store, r.Context(), user, id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	// The status is whatever the system of record reported on refetch.
	updated, ok := store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Request not found after update", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// GetCalendar returns the rule annotations of a year for a kind.
// GET /api/calendar?kind=holiday&year=2025
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	kind := timeoff.Kind(r.URL.Query().Get("kind"))
	if !kind.IsKnown() {
		writeError(w, http.StatusBadRequest, "Invalid or missing kind", nil)
		return
	}
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}

	window := generic.YearWindow(year)
	sel := calendar.NewSelector(h.engine, kind, window)

	writeJSON(w, http.StatusOK, CalendarResponse{
		Kind:   string(kind),
		Window: toWindowDTO(window),
		Rule:   h.kindRuleDTO(kind),
		Days:   sel.Annotations().Sorted(),
	})
}

func (h *Handler) kindRuleDTO(kind timeoff.Kind) KindRuleDTO {
	dto := KindRuleDTO{BlockedWeekdays: []string{}, HolidaysBlock: h.engine.HolidaysBlock(kind)}
	if rule, ok := h.engine.Rule(kind); ok {
		dto.AdvisoryHolidays = rule.AdvisoryHolidays
	}
	for _, d := range h.engine.BlockedWeekdays(kind).Days() {
		dto.BlockedWeekdays = append(dto.BlockedWeekdays, strings.ToLower(d.String()))
	}
	return dto
}

// Tap applies one tap to the selection the client holds. The selection is
// restored from the body, so the server keeps no per-client state.
// POST /api/calendar/tap
func (h *Handler) Tap(w http.ResponseWriter, r *http.Request) {
	var body TapRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	kind := timeoff.Kind(body.Kind)
	date := generic.MustParseDate(body.Date)
	var start, end generic.Date
	if body.Start != "" {
		start = generic.MustParseDate(body.Start)
	}
	if body.End != "" {
		end = generic.MustParseDate(body.End)
	}
	year := body.Year
	if year == 0 {
		year = date.Year()
	}

	sel := calendar.NewSelector(h.engine, kind, generic.YearWindow(year))
	if err := sel.Restore(start, end); err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := TapResponse{}
	if err := sel.Tap(date); err != nil {
		var selErr *calendar.SelectionError
		if !errors.As(err, &selErr) {
			h.writeDomainError(w, err)
			return
		}
		resp.Rejection = toRejectionDTO(selErr)
	}
	resp.State = sel.State().String()
	resp.Range = toRangeDTO(sel.Range())
	resp.Days = sel.Annotations().Sorted()
	writeJSON(w, http.StatusOK, resp)
}

// ListHolidays returns the holidays of a year, recurring ones included.
// GET /api/holidays?year=2025
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}

	holidays := h.engine.Holidays(generic.YearWindow(year))
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{Date: hol.Date.String(), Name: hol.Name, Recurring: hol.Recurring}
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "holidays": dtos})
}

func (h *Handler) yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return h.Now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1970 || year > 9999 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return 0, false
	}
	return year, true
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decodeAndValidate decodes a JSON body into dst and runs its validate tags.
// It writes a 400 and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

// validationDetails flattens validator errors to "field: tag" pairs.
func validationDetails(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
	}
	return errors.New(strings.Join(parts, "; "))
}

// writeDomainError maps timeoff and calendar errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var selErr *calendar.SelectionError
	switch {
	case errors.Is(err, timeoff.ErrUnsupportedKind):
		writeError(w, http.StatusUnprocessableEntity, "Requests of this kind cannot be stored", err)
	case errors.As(err, &selErr):
		writeError(w, http.StatusUnprocessableEntity, selErr.Message(), err)
	case errors.Is(err, timeoff.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Not permitted", err)
	case errors.Is(err, timeoff.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "Request is not pending", err)
	case errors.Is(err, timeoff.ErrActionInProgress):
		writeError(w, http.StatusConflict, "Another action on this request is in progress", err)
	case timeoff.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Request not found", err)
	case errors.Is(err, timeoff.ErrActionFailed):
		writeError(w, http.StatusBadGateway, "The system of record rejected the change", err)
	case errors.Is(err, timeoff.ErrLoadFailed):
		writeError(w, http.StatusServiceUnavailable, "Failed to load requests", err)
	case errors.Is(err, timeoff.ErrInvalidRecord),
		errors.Is(err, calendar.ErrInvalidRange),
		errors.Is(err, generic.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
