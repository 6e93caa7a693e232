package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists slots, appointments and reviews. Every write that
// depends on current state must apply its guard atomically with the write.
type Repository interface {
	CreateSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) (*Slot, error)
	ListOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error)

	// BookSlot marks the slot booked and inserts the appointment priced from
	// the doctor's current rate. Fails with ErrSlotUnavailable when the slot
	// is missing or already booked.
	BookSlot(ctx context.Context, params BookSlotParams) (*Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]View, error)
	ListQueue(ctx context.Context) ([]View, error)
	ListDoctorRequests(ctx context.Context, doctorID uuid.UUID) ([]View, error)
	ListDoctorConfirmed(ctx context.Context, doctorID uuid.UUID) ([]View, error)

	Claim(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error)
	Transition(ctx context.Context, t Transition) (*Appointment, error)
	MarkPaid(ctx context.Context, id, patientID uuid.UUID) (*Appointment, error)

	// CreateReview stores r and, when the appointment has a doctor, returns
	// the recomputed rating.
	CreateReview(ctx context.Context, r *Review) (*DoctorRating, error)
	GetDoctorRating(ctx context.Context, doctorID uuid.UUID) (*DoctorRating, error)
}

// BookSlotParams carries a slot booking request.
type BookSlotParams struct {
	AppointmentID uuid.UUID
	SlotID        uuid.UUID
	PatientID     uuid.UUID
	Notes         string
	Price         func(hourlyRate int64) Charge
	Now           time.Time
}
