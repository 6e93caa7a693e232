package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is tracked independently of Status.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Slot is a bookable start time published by a doctor.
type Slot struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	IsBooked  bool      `json:"is_booked"`
}

// Appointment is a consultation between a patient and (eventually) a doctor.
// Amount, Commission and Payout are whole currency units fixed at creation.
type Appointment struct {
	ID            uuid.UUID     `json:"id"`
	PatientID     uuid.UUID     `json:"patient_id"`
	DoctorID      *uuid.UUID    `json:"doctor_id"`
	SlotID        *uuid.UUID    `json:"slot_id"`
	ScheduledFor  time.Time     `json:"scheduled_for"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Notes         string        `json:"notes"`
	Amount        int64         `json:"amount"`
	Commission    int64         `json:"commission"`
	Payout        int64         `json:"payout"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsGeneral reports whether the appointment came from the unassigned queue.
func (a *Appointment) IsGeneral() bool {
	return a.SlotID == nil
}

// AssignedTo reports whether doctorID is the appointment's doctor.
func (a *Appointment) AssignedTo(doctorID uuid.UUID) bool {
	return a.DoctorID != nil && *a.DoctorID == doctorID
}

func (a *Appointment) clone() *Appointment {
	c := *a
	if a.DoctorID != nil {
		id := *a.DoctorID
		c.DoctorID = &id
	}
	if a.SlotID != nil {
		id := *a.SlotID
		c.SlotID = &id
	}
	return &c
}

// View is an appointment as listed to one side of it.
type View struct {
	Appointment
	CounterpartName string `json:"counterpart_name"`
	HasReview       bool   `json:"has_review"`
}

// Review is a patient's rating of a completed appointment.
type Review struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	DoctorID      *uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Rating        int        `json:"rating"`
	Comment       string     `json:"comment"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DoctorRating is the aggregate maintained from all of a doctor's reviews.
type DoctorRating struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
}
