/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Users:     UserDTO
  Requests:  RequestDTO, CreateRequest, RequestListResponse, CreatedResponse
  Calendar:  CalendarResponse, TapRequest, TapResponse, RejectionDTO
  Holidays:  HolidayDTO

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked in
  decodeAndValidate before a handler looks at them. Dates are YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Uses these types
  - calendar/selector.go: Mark values used in day annotations
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/calendar"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
)

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents the authenticated user.
type UserDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
}

func toUserDTO(u timeoff.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Name:        u.Name,
		Surname:     u.Surname,
		DisplayName: u.DisplayName(),
		Email:       u.Email,
		Role:        string(u.Role),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// RequestDTO represents a normalized request in API responses.
type RequestDTO struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	RequesterName string `json:"requester_name,omitempty"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Days          int    `json:"days"`
	Note          string `json:"note,omitempty"`

	// Sick leave
	Certificate string `json:"certificate,omitempty"`

	// Overtime
	OvertimeStart string           `json:"overtime_start,omitempty"`
	OvertimeEnd   string           `json:"overtime_end,omitempty"`
	OvertimeHours *decimal.Decimal `json:"overtime_hours,omitempty"`
}

func toRequestDTO(r timeoff.Request) RequestDTO {
	dto := RequestDTO{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		RequesterName: r.RequesterName,
		Kind:          string(r.Kind),
		Status:        string(r.Status),
		StartDate:     r.Start.String(),
		EndDate:       r.End.String(),
		Days:          r.Days(),
		Note:          r.Note,
	}
	if r.SickLeave != nil {
		dto.Certificate = r.SickLeave.Certificate
	}
	if r.Overtime != nil {
		if !r.Overtime.StartAt.IsZero() {
			dto.OvertimeStart = r.Overtime.StartAt.Format(time.RFC3339)
		}
		if !r.Overtime.EndAt.IsZero() {
			dto.OvertimeEnd = r.Overtime.EndAt.Format(time.RFC3339)
		}
		hours := r.OvertimeHours()
		dto.OvertimeHours = &hours
	}
	return dto
}

func toRequestDTOs(requests []timeoff.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, r := range requests {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

// RequestListResponse is returned by GET /api/requests.
type RequestListResponse struct {
	View     string       `json:"view"`
	Requests []RequestDTO `json:"requests"`
	Count    int          `json:"count"`
}

// CreateRequest is the request to submit a new absence request.
// The owner is always the authenticated user.
type CreateRequest struct {
	Kind        string `json:"kind" validate:"required,request_kind"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Note        string `json:"note,omitempty" validate:"max=500"`
	Certificate string `json:"certificate,omitempty" validate:"max=100"`

	// Overtime only, RFC 3339
	OvertimeStart string `json:"overtime_start,omitempty" validate:"required_with=OvertimeEnd,omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	OvertimeEnd   string `json:"overtime_end,omitempty" validate:"required_with=OvertimeStart,omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// CreatedResponse is returned by POST /api/requests.
type CreatedResponse struct {
	ID      string      `json:"id"`
	Request *RequestDTO `json:"request,omitempty"`
}

// =============================================================================
// CALENDAR
// =============================================================================

// WindowDTO is an inclusive date window.
type WindowDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func toWindowDTO(w generic.Window) WindowDTO {
	return WindowDTO{From: w.From.String(), To: w.To.String()}
}

// RangeDTO is a selected range. End is empty for a single selection.
type RangeDTO struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func toRangeDTO(r calendar.Range) RangeDTO {
	var dto RangeDTO
	if !r.Start.IsZero() {
		dto.Start = r.Start.String()
	}
	if !r.End.IsZero() {
		dto.End = r.End.String()
	}
	return dto
}

// KindRuleDTO describes the rules the engine applies to a kind.
type KindRuleDTO struct {
	BlockedWeekdays  []string `json:"blocked_weekdays"`
	HolidaysBlock    bool     `json:"holidays_block"`
	AdvisoryHolidays bool     `json:"advisory_holidays"`
}

// CalendarResponse is returned by GET /api/calendar.
type CalendarResponse struct {
	Kind   string             `json:"kind"`
	Window WindowDTO          `json:"window"`
	Rule   KindRuleDTO        `json:"rule"`
	Days   []calendar.DayMark `json:"days"`
}

// TapRequest replays a tap against a selection held by the client.
// Start and End are the client's current selection (both empty when nothing
// is selected, End empty for a single selection).
type TapRequest struct {
	Kind  string `json:"kind" validate:"required,request_kind"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Start string `json:"start,omitempty" validate:"required_with=End,omitempty,datetime=2006-01-02"`
	End   string `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Year  int    `json:"year,omitempty" validate:"omitempty,min=1970,max=9999"`
}

// RejectionDTO explains a refused tap.
type RejectionDTO struct {
	Reason     string   `json:"reason"`
	Message    string   `json:"message"`
	Violations []string `json:"violations"`
}

func toRejectionDTO(e *calendar.SelectionError) *RejectionDTO {
	v := make([]string, len(e.Violations))
	for i, viol := range e.Violations {
		v[i] = string(viol)
	}
	return &RejectionDTO{Reason: string(e.Reason), Message: e.Message(), Violations: v}
}

// TapResponse is the selection after a tap. Rejection is set when the tap
// was refused; the state then is whatever the refusal left in place.
type TapResponse struct {
	State     string             `json:"state"`
	Range     RangeDTO           `json:"range"`
	Rejection *RejectionDTO      `json:"rejection,omitempty"`
	Days      []calendar.DayMark `json:"days"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayDTO represents a holiday occurrence.
type HolidayDTO struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
