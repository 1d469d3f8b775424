// Package timeoff implements the request side of the absence engine: the
// unified Request model, normalization of raw source records, requester name
// resolution and the approval workflow held by Store.
package timeoff

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// REQUEST KIND
// =============================================================================

// Kind identifies what a request is for. The set is closed for the three
// record shapes, but the permit kinds below are accepted everywhere a Kind is.
type Kind string

const (
	KindHoliday   Kind = "holiday"
	KindSickLeave Kind = "sick_leave"
	KindOvertime  Kind = "overtime"

	// Leave permits
	KindStudyPermit      Kind = "study_permit"
	KindMourningPermit   Kind = "mourning_permit"
	KindDisabilityPermit Kind = "disability_permit" // L.104
	KindMedicalPermit    Kind = "medical_permit"
	KindMarriageLeave    Kind = "marriage_leave"
	KindParentalLeave    Kind = "parental_leave"
)

var knownKinds = []Kind{
	KindHoliday, KindSickLeave, KindOvertime,
	KindStudyPermit, KindMourningPermit, KindDisabilityPermit,
	KindMedicalPermit, KindMarriageLeave, KindParentalLeave,
}

// Kinds returns every kind the engine knows about.
func Kinds() []Kind { return append([]Kind(nil), knownKinds...) }

func (k Kind) IsKnown() bool {
	for _, known := range knownKinds {
		if k == known {
			return true
		}
	}
	return false
}

// =============================================================================
// REQUEST STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

// CanTransition reports whether from -> to is a legal workflow step.
// Pending is the only non-terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.IsTerminal()
}

// =============================================================================
// USER
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
	RoleExternal Role = "external"
)

// ParseRole maps role names, including the source database labels
// ("Utente", "Admin", "Utente_Esterno"), to a Role. Unknown names are employees.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "external", "utente_esterno":
		return RoleExternal
	default:
		return RoleEmployee
	}
}

// User is owned by the authentication collaborator and read-only here.
type User struct {
	ID      string
	Name    string
	Surname string
	Email   string
	Role    Role
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// DisplayName is "Name Surname", trimmed.
func (u User) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.Name) + " " + strings.TrimSpace(u.Surname))
}

// =============================================================================
// REQUEST - Tagged union, one case per Kind
// =============================================================================

// Request is the unified shape of every record. Kind is the discriminant;
// SickLeave and Overtime carry the case-specific fields and are nil for other kinds.
type Request struct {
	ID      string
	OwnerID string
	Kind    Kind
	Status  Status

	// Inclusive calendar days, Start <= End.
	Start generic.Date
	End   generic.Date

	Note string

	// Derived from the user lookup. Empty when the owner could not be resolved.
	RequesterName string

	SickLeave *SickLeaveDetail
	Overtime  *OvertimeDetail
}

type SickLeaveDetail struct {
	Certificate string // empty when no certificate was attached
}

// OvertimeDetail keeps the source timestamps. They are zero when the source
// only carried dates.
type OvertimeDetail struct {
	StartAt time.Time
	EndAt   time.Time
}

// Days returns the inclusive number of calendar days covered.
func (r Request) Days() int { return generic.DaysBetween(r.Start, r.End) + 1 }

// Covers reports whether d falls in [Start, End].
func (r Request) Covers(d generic.Date) bool {
	return r.Start.BeforeOrEqual(d) && d.BeforeOrEqual(r.End)
}

// OvertimeHours returns the worked overtime in hours, rounded to two places.
// Zero for non-overtime requests and for missing or non-positive spans.
func (r Request) OvertimeHours() decimal.Decimal {
	if r.Kind != KindOvertime || r.Overtime == nil {
		return decimal.Zero
	}
	if r.Overtime.StartAt.IsZero() || r.Overtime.EndAt.IsZero() {
		return decimal.Zero
	}
	diff := r.Overtime.EndAt.Sub(r.Overtime.StartAt)
	if diff <= 0 {
		return decimal.Zero
	}
	minutes := decimal.NewFromInt(int64(diff / time.Minute))
	return minutes.Div(decimal.NewFromInt(60)).Round(2)
}

// clone copies the case pointers so snapshots never share mutable state.
func (r Request) clone() Request {
	if r.SickLeave != nil {
		s := *r.SickLeave
		r.SickLeave = &s
	}
	if r.Overtime != nil {
		o := *r.Overtime
		r.Overtime = &o
	}
	return r
}
