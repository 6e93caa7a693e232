package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/appointments"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func newNotifier(t *testing.T) (*Notifier, *recordingSender, uuid.UUID) {
	t.Helper()
	repo := accounts.NewInMemoryRepository()
	patientID := uuid.New()
	repo.Put(&accounts.Account{ID: patientID, FirstName: "Pat", LastName: "Doe", Email: "pat@example.com"})
	sender := &recordingSender{}
	return NewNotifier(sender, accounts.NewService(repo, 0, nil), nil), sender, patientID
}

func TestNotifierSendsOnDoctorEvents(t *testing.T) {
	n, sender, patientID := newNotifier(t)
	doctorID := uuid.New()
	evt := appointments.Event{
		Type:          appointments.EventClaimed,
		AppointmentID: uuid.New(),
		PatientID:     patientID,
		DoctorID:      &doctorID,
		ActorID:       doctorID,
		ScheduledFor:  time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC),
	}

	require.NoError(t, n.AppointmentChanged(context.Background(), evt))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "pat@example.com", sender.sent[0].To)
	assert.Equal(t, "Pat Doe", sender.sent[0].ToName)
	assert.Contains(t, sender.sent[0].Body, "Hi Pat")
	assert.Contains(t, sender.sent[0].Body, evt.AppointmentID.String())
}

func TestNotifierSkipsOtherEvents(t *testing.T) {
	n, sender, patientID := newNotifier(t)
	for _, typ := range []appointments.EventType{appointments.EventBooked, appointments.EventPaid, appointments.EventReviewed} {
		require.NoError(t, n.AppointmentChanged(context.Background(), appointments.Event{Type: typ, PatientID: patientID, ActorID: patientID}))
	}
	// self-cancellation
	require.NoError(t, n.AppointmentChanged(context.Background(), appointments.Event{Type: appointments.EventCancelled, PatientID: patientID, ActorID: patientID}))
	assert.Empty(t, sender.sent)
}

func TestNotifierErrors(t *testing.T) {
	n, sender, _ := newNotifier(t)
	err := n.AppointmentChanged(context.Background(), appointments.Event{Type: appointments.EventCompleted, PatientID: uuid.New(), ActorID: uuid.New()})
	assert.ErrorIs(t, err, accounts.ErrNotFound)

	n2, _, patientID := newNotifier(t)
	n2.email = &recordingSender{err: errors.New("smtp down")}
	err = n2.AppointmentChanged(context.Background(), appointments.Event{Type: appointments.EventDeclined, PatientID: patientID, ActorID: uuid.New()})
	assert.ErrorContains(t, err, "smtp down")
	assert.Empty(t, sender.sent)
}
