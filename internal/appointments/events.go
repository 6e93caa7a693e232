package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a successful appointment change.
type EventType string

const (
	EventBooked    EventType = "appointment.booked"
	EventRequested EventType = "appointment.requested"
	EventClaimed   EventType = "appointment.claimed"
	EventConfirmed EventType = "appointment.confirmed"
	EventDeclined  EventType = "appointment.declined"
	EventCancelled EventType = "appointment.cancelled"
	EventCompleted EventType = "appointment.completed"
	EventPaid      EventType = "appointment.paid"
	EventReviewed  EventType = "appointment.reviewed"
)

// Event is emitted to observers after a change commits.
type Event struct {
	Type          EventType     `json:"type"`
	AppointmentID uuid.UUID     `json:"appointment_id"`
	PatientID     uuid.UUID     `json:"patient_id"`
	DoctorID      *uuid.UUID    `json:"doctor_id,omitempty"`
	ActorID       uuid.UUID     `json:"actor_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Amount        int64         `json:"amount"`
	ScheduledFor  time.Time     `json:"scheduled_for"`
	Rating        int           `json:"rating,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// Observer reacts to appointment events. Errors are logged by the caller and
// never fail the originating request.
type Observer interface {
	AppointmentChanged(ctx context.Context, evt Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, evt Event) error

func (f ObserverFunc) AppointmentChanged(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

func newEvent(t EventType, a *Appointment, actor uuid.UUID, at time.Time) Event {
	return Event{
		Type:          t,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		ActorID:       actor,
		Status:        a.Status,
		PaymentStatus: a.PaymentStatus,
		Amount:        a.Amount,
		ScheduledFor:  a.ScheduledFor,
		OccurredAt:    at,
	}
}
