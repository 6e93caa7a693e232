package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/appointments"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// AccountLookup resolves the patient's contact details.
type AccountLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*accounts.Account, error)
}

// Notifier e-mails patients when a doctor acts on their appointment.
type Notifier struct {
	email    EmailSender
	accounts AccountLookup
	logger   *logging.Logger
}

func NewNotifier(email EmailSender, lookup AccountLookup, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{email: email, accounts: lookup, logger: logger}
}

type template struct {
	subject string
	line    string
}

var templates = map[appointments.EventType]template{
	appointments.EventClaimed:   {"A doctor has taken your consultation", "A doctor has picked up your consultation request and it is now confirmed."},
	appointments.EventConfirmed: {"Your appointment is confirmed", "Your doctor has accepted your appointment."},
	appointments.EventDeclined:  {"Your appointment request was declined", "Your doctor could not take this appointment. The time slot has been released so you can book another."},
	appointments.EventCancelled: {"Your appointment was cancelled", "Your appointment has been cancelled."},
	appointments.EventCompleted: {"Your consultation is complete", "Your consultation is marked as complete. You can now leave a review for your doctor."},
}

// AppointmentChanged sends the patient an e-mail for doctor-driven events.
func (n *Notifier) AppointmentChanged(ctx context.Context, evt appointments.Event) error {
	tpl, ok := templates[evt.Type]
	if !ok || n.email == nil || n.accounts == nil {
		return nil
	}
	// patients already know about their own cancellations
	if evt.Type == appointments.EventCancelled && evt.ActorID == evt.PatientID {
		return nil
	}

	patient, err := n.accounts.Get(ctx, evt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: lookup patient: %w", err)
	}
	if patient.Email == "" {
		n.logger.Debug("notify: patient has no email", "patient_id", evt.PatientID)
		return nil
	}

	when := ""
	if !evt.ScheduledFor.IsZero() {
		when = "\nScheduled for: " + evt.ScheduledFor.UTC().Format("Monday, January 2 at 15:04 MST")
	}
	body := fmt.Sprintf("Hi %s,\n\n%s%s\nReference: %s\n\nMedIQ", patient.FirstName, tpl.line, when, evt.AppointmentID)

	msg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.FullName(),
		Subject: tpl.subject,
		Body:    body,
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send %s: %w", evt.Type, err)
	}
	n.logger.Info("notify: patient emailed", "event", evt.Type, "appointment_id", evt.AppointmentID)
	return nil
}
