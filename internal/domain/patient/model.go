package patient

import (
	"time"

	"github.com/google/uuid"
)

// Status is the patient lifecycle state. The set is closed: the engine only
// ever writes one of the constants below, and transitions are checked against
// the transition table before any write.
type Status string

const (
	StatusInactive  Status = "inactive"
	StatusWaiting   Status = "waiting"
	StatusScheduled Status = "scheduled"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
	StatusBooked    Status = "booked"
	StatusFollowUp  Status = "follow_up"
)

// VisitType categorises the reason for the visit and feeds the score bonus.
type VisitType string

const (
	VisitEmergency VisitType = "emergency"
	VisitRegular   VisitType = "regular"
	VisitFollowUp  VisitType = "follow_up"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusInactive, StatusWaiting, StatusScheduled, StatusServing,
		StatusCompleted, StatusCancelled, StatusNoShow, StatusBooked, StatusFollowUp:
		return true
	}
	return false
}

// ValidVisitType reports whether v is a known visit category.
func ValidVisitType(v VisitType) bool {
	switch v {
	case VisitEmergency, VisitRegular, VisitFollowUp:
		return true
	}
	return false
}

// Patient maps to the patients table.
type Patient struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	VisitType           VisitType  `db:"visit_type" json:"visit_type"`
	PriorityLevel       int        `db:"priority_level" json:"priority_level"`
	EstimatedServiceMin int        `db:"estimated_service_min" json:"estimated_service_min"`
	ArrivalAt           time.Time  `db:"arrival_at" json:"arrival_at"`
	QueueEnteredAt      *time.Time `db:"queue_entered_at" json:"queue_entered_at,omitempty"`
	AssignedStaffID     *uuid.UUID `db:"assigned_staff_id" json:"assigned_staff_id,omitempty"`
	PreferredStaffID    *uuid.UUID `db:"preferred_staff_id" json:"preferred_staff_id,omitempty"`
	AppointmentAt       *time.Time `db:"appointment_at" json:"appointment_at,omitempty"`
	Score               float64    `db:"score" json:"score"`
	Status              Status     `db:"status" json:"status"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the patient participates in the ordering index.
func (p *Patient) Active() bool {
	return p.Status == StatusWaiting || p.Status == StatusScheduled
}

// Terminal reports whether the patient has reached a final state. Terminal
// records are kept for history and stats, never reused in the queue directly.
func (p *Patient) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusCancelled || p.Status == StatusNoShow
}

// Action names an engine operation for transition checking.
type Action string

const (
	ActionBook     Action = "book"
	ActionSchedule Action = "schedule"
	ActionAssign   Action = "assign"
	ActionServe    Action = "serve"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionNoShow   Action = "no_show"
	ActionReassign Action = "reassign"
	ActionOverride Action = "override"
)

var transitionMap = map[Action][]Status{
	ActionBook:     {StatusInactive, StatusCompleted, StatusCancelled},
	ActionSchedule: {StatusWaiting},
	ActionAssign:   {StatusWaiting, StatusScheduled},
	ActionServe:    {StatusScheduled},
	ActionComplete: {StatusServing, StatusScheduled},
	ActionCancel:   {StatusWaiting, StatusScheduled},
	ActionNoShow:   {StatusWaiting, StatusScheduled},
	ActionReassign: {StatusWaiting, StatusScheduled, StatusServing},
	ActionOverride: {StatusInactive, StatusWaiting, StatusScheduled, StatusServing, StatusBooked, StatusFollowUp},
}

// CanTransition reports whether action is allowed from the given status.
// Any pair not present in the table is rejected.
func CanTransition(action Action, from Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == from {
			return true
		}
	}
	return false
}
