package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/observability/metrics"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

var appointmentsTracer = otel.Tracer("mediq.internal.appointments")

const maxNotesLength = 2000

// Service runs booking, queue matching, lifecycle transitions and reviews.
type Service struct {
	repo      Repository
	pricing   Pricing
	logger    *logging.Logger
	metrics   *metrics.ConsultMetrics
	observers []Observer
	now       func() time.Time
}

// NewService constructs an appointments service.
func NewService(repo Repository, pricing Pricing, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, pricing: pricing, logger: logger, now: time.Now}
}

// SetMetrics attaches Prometheus counters. A nil value disables them.
func (s *Service) SetMetrics(m *metrics.ConsultMetrics) {
	s.metrics = m
}

// AddObserver registers an observer for committed changes.
func (s *Service) AddObserver(o Observer) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) emit(ctx context.Context, evt Event) {
	for _, o := range s.observers {
		if err := o.AppointmentChanged(ctx, evt); err != nil {
			s.logger.Warn("appointment observer failed", "event", evt.Type, "appointment_id", evt.AppointmentID, "error", err)
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrDuplicateReview):
		return "duplicate"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func cleanNotes(notes string) (string, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > maxNotesLength {
		return "", fmt.Errorf("%w: notes longer than %d characters", ErrInvalidInput, maxNotesLength)
	}
	return notes, nil
}

// CreateSlot publishes an open slot for doctorID.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) (slot *Slot, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create_slot")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("mediq.doctor_id", doctorID.String()))

	if start.IsZero() {
		return nil, fmt.Errorf("%w: start_time required", ErrInvalidInput)
	}
	slot, err = s.repo.CreateSlot(ctx, doctorID, start.UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("slot created", "slot_id", slot.ID, "doctor_id", doctorID, "start_time", slot.StartTime)
	return slot, nil
}

// ListOpenSlots returns a doctor's unbooked slots, earliest first.
func (s *Service) ListOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	return s.repo.ListOpenSlots(ctx, doctorID)
}

// BookSlot reserves slotID for patientID.
func (s *Service) BookSlot(ctx context.Context, slotID, patientID uuid.UUID, notes string) (a *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book_slot")
	defer func() {
		s.metrics.ObserveBooking("slot", outcome(err))
		endSpan(span, err)
	}()
	span.SetAttributes(
		attribute.String("mediq.slot_id", slotID.String()),
		attribute.String("mediq.patient_id", patientID.String()),
	)

	notes, err = cleanNotes(notes)
	if err != nil {
		return nil, err
	}
	a, err = s.repo.BookSlot(ctx, BookSlotParams{
		AppointmentID: uuid.New(),
		SlotID:        slotID,
		PatientID:     patientID,
		Notes:         notes,
		Price:         s.pricing.ForRate,
		Now:           s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("slot booked", "appointment_id", a.ID, "slot_id", slotID, "patient_id", patientID, "amount", a.Amount)
	s.emit(ctx, newEvent(EventBooked, a, patientID, s.now().UTC()))
	return a, nil
}

// BookGeneral files an unassigned request priced by plan.
func (s *Service) BookGeneral(ctx context.Context, patientID uuid.UUID, notes string, plan accounts.Plan) (a *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book_general")
	defer func() {
		s.metrics.ObserveBooking("general", outcome(err))
		endSpan(span, err)
	}()
	span.SetAttributes(
		attribute.String("mediq.patient_id", patientID.String()),
		attribute.String("mediq.plan", string(plan)),
	)

	notes, err = cleanNotes(notes)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	charge := s.pricing.ForGeneral(plan == accounts.PlanPremium)
	a = &Appointment{
		ID:            uuid.New(),
		PatientID:     patientID,
		ScheduledFor:  now,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Notes:         notes,
		Amount:        charge.Amount,
		Commission:    charge.Commission,
		Payout:        charge.Payout,
		CreatedAt:     now,
	}
	if err = s.repo.CreateAppointment(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("general consultation requested", "appointment_id", a.ID, "patient_id", patientID, "plan", plan, "amount", a.Amount)
	s.emit(ctx, newEvent(EventRequested, a, patientID, now))
	return a, nil
}

// ListMyAppointments returns the patient's appointments, latest first.
func (s *Service) ListMyAppointments(ctx context.Context, patientID uuid.UUID) ([]View, error) {
	return s.repo.ListForPatient(ctx, patientID)
}

// ListDoctorQueue returns paid, pending requests no doctor has claimed.
func (s *Service) ListDoctorQueue(ctx context.Context) ([]View, error) {
	return s.repo.ListQueue(ctx)
}

// ListDoctorRequests returns paid, pending appointments assigned to doctorID.
func (s *Service) ListDoctorRequests(ctx context.Context, doctorID uuid.UUID) ([]View, error) {
	return s.repo.ListDoctorRequests(ctx, doctorID)
}

// ListDoctorConfirmed returns doctorID's confirmed appointments, earliest first.
func (s *Service) ListDoctorConfirmed(ctx context.Context, doctorID uuid.UUID) ([]View, error) {
	return s.repo.ListDoctorConfirmed(ctx, doctorID)
}

// GetAppointment returns a single appointment.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

// Claim assigns an unassigned pending request to doctorID and confirms it.
func (s *Service) Claim(ctx context.Context, appointmentID, doctorID uuid.UUID) (a *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.claim")
	defer func() {
		s.metrics.ObserveClaim(outcome(err))
		endSpan(span, err)
	}()
	span.SetAttributes(
		attribute.String("mediq.appointment_id", appointmentID.String()),
		attribute.String("mediq.doctor_id", doctorID.String()),
	)

	a, err = s.repo.Claim(ctx, appointmentID, doctorID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("queue request claimed", "appointment_id", a.ID, "doctor_id", doctorID)
	s.emit(ctx, newEvent(EventClaimed, a, doctorID, s.now().UTC()))
	return a, nil
}

// Pay marks the patient's appointment paid. Repeat calls are harmless.
func (s *Service) Pay(ctx context.Context, appointmentID, patientID uuid.UUID) (a *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.pay")
	defer func() {
		s.metrics.ObserveTransition("pay", outcome(err))
		endSpan(span, err)
	}()
	span.SetAttributes(attribute.String("mediq.appointment_id", appointmentID.String()))

	a, err = s.repo.MarkPaid(ctx, appointmentID, patientID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment paid", "appointment_id", a.ID, "patient_id", patientID)
	s.emit(ctx, newEvent(EventPaid, a, patientID, s.now().UTC()))
	return a, nil
}

func (s *Service) transition(ctx context.Context, action string, evt EventType, t Transition, actor uuid.UUID) (a *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments."+action)
	defer func() {
		s.metrics.ObserveTransition(action, outcome(err))
		endSpan(span, err)
	}()
	span.SetAttributes(
		attribute.String("mediq.appointment_id", t.AppointmentID.String()),
		attribute.String("mediq.target_status", string(t.To)),
	)

	a, err = s.repo.Transition(ctx, t)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment transitioned", "action", action, "appointment_id", a.ID, "status", a.Status, "actor_id", actor)
	s.emit(ctx, newEvent(evt, a, actor, s.now().UTC()))
	return a, nil
}

// CancelByPatient cancels a pending or confirmed appointment and frees its slot.
func (s *Service) CancelByPatient(ctx context.Context, appointmentID, patientID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "cancel_patient", EventCancelled, Transition{
		AppointmentID: appointmentID,
		To:            StatusCancelled,
		PatientID:     &patientID,
		ReleaseSlot:   true,
	}, patientID)
}

func (s *Service) doctorTransition(ctx context.Context, action string, evt EventType, to Status, appointmentID, doctorID uuid.UUID, release bool) (*Appointment, error) {
	return s.transition(ctx, action, evt, Transition{
		AppointmentID: appointmentID,
		To:            to,
		DoctorID:      &doctorID,
		ReleaseSlot:   release,
	}, doctorID)
}

// Accept confirms a pending appointment assigned to doctorID.
func (s *Service) Accept(ctx context.Context, appointmentID, doctorID uuid.UUID) (*Appointment, error) {
	return s.doctorTransition(ctx, "accept", EventConfirmed, StatusConfirmed, appointmentID, doctorID, false)
}

// Decline cancels an assigned appointment on the doctor's behalf and frees its slot.
func (s *Service) Decline(ctx context.Context, appointmentID, doctorID uuid.UUID) (*Appointment, error) {
	return s.doctorTransition(ctx, "decline", EventDeclined, StatusCancelled, appointmentID, doctorID, true)
}

// CancelByDoctor cancels an assigned appointment and frees its slot.
func (s *Service) CancelByDoctor(ctx context.Context, appointmentID, doctorID uuid.UUID) (*Appointment, error) {
	return s.doctorTransition(ctx, "cancel_doctor", EventCancelled, StatusCancelled, appointmentID, doctorID, true)
}

// Complete marks a confirmed appointment completed.
func (s *Service) Complete(ctx context.Context, appointmentID, doctorID uuid.UUID) (*Appointment, error) {
	return s.doctorTransition(ctx, "complete", EventCompleted, StatusCompleted, appointmentID, doctorID, false)
}

// SubmitReview records the patient's rating of a completed appointment and
// refreshes the doctor's aggregate.
func (s *Service) SubmitReview(ctx context.Context, appointmentID, patientID uuid.UUID, rating int, comment string) (rv *Review, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.submit_review")
	defer func() {
		s.metrics.ObserveReview(outcome(err))
		endSpan(span, err)
	}()
	span.SetAttributes(
		attribute.String("mediq.appointment_id", appointmentID.String()),
		attribute.Int("mediq.rating", rating),
	)

	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	rv = &Review{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Rating:        rating,
		Comment:       strings.TrimSpace(comment),
		CreatedAt:     s.now().UTC(),
	}
	agg, err := s.repo.CreateReview(ctx, rv)
	if err != nil {
		return nil, err
	}
	if agg != nil {
		s.logger.Info("review recorded", "appointment_id", appointmentID, "doctor_id", agg.DoctorID, "rating", agg.Rating, "review_count", agg.ReviewCount)
	} else {
		s.logger.Info("review recorded", "appointment_id", appointmentID)
	}

	evt := Event{
		Type:          EventReviewed,
		AppointmentID: appointmentID,
		PatientID:     patientID,
		DoctorID:      rv.DoctorID,
		ActorID:       patientID,
		Status:        StatusCompleted,
		Rating:        rating,
		OccurredAt:    rv.CreatedAt,
	}
	s.emit(ctx, evt)
	return rv, nil
}

// DoctorRating returns a doctor's current aggregate.
func (s *Service) DoctorRating(ctx context.Context, doctorID uuid.UUID) (*DoctorRating, error) {
	return s.repo.GetDoctorRating(ctx, doctorID)
}
