package appointments

import "github.com/google/uuid"

var allowedFrom = map[Status][]Status{
	StatusConfirmed: {StatusPending},
	StatusCompleted: {StatusConfirmed},
	StatusCancelled: {StatusPending, StatusConfirmed},
}

// AllowedFrom lists the states a transition to `to` may start from.
func AllowedFrom(to Status) []Status {
	return allowedFrom[to]
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Transition describes a guarded status change. Exactly one of PatientID or
// DoctorID names the acting party.
type Transition struct {
	AppointmentID uuid.UUID
	To            Status
	PatientID     *uuid.UUID
	DoctorID      *uuid.UUID
	ReleaseSlot   bool
}

// check explains why t cannot apply to a, or returns nil.
func (t Transition) check(a *Appointment) error {
	if t.PatientID != nil && a.PatientID != *t.PatientID {
		return ErrForbidden
	}
	if t.DoctorID != nil && !a.AssignedTo(*t.DoctorID) {
		return ErrForbidden
	}
	if !CanTransition(a.Status, t.To) {
		return ErrInvalidState
	}
	return nil
}
