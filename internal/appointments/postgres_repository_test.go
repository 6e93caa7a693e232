package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "patient_id", "doctor_id", "slot_id", "scheduled_for", "status",
	"payment_status", "notes", "amount", "commission", "payout", "created_at",
}

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func TestPostgresCreateSlotUnknownDoctor(t *testing.T) {
	repo, mock := newMockRepo(t)
	doctorID := uuid.New()
	mock.ExpectExec("INSERT INTO doctor_slots").
		WithArgs(pgxmock.AnyArg(), doctorID, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

	_, err := repo.CreateSlot(context.Background(), doctorID, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListOpenSlots(t *testing.T) {
	repo, mock := newMockRepo(t)
	doctorID := uuid.New()
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM doctor_slots\\s+WHERE doctor_id = \\$1 AND is_booked = false\\s+ORDER BY start_time ASC").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_id", "start_time", "is_booked"}).
			AddRow(uuid.New(), doctorID, start, false).
			AddRow(uuid.New(), doctorID, start.Add(time.Hour), false))

	slots, err := repo.ListOpenSlots(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].StartTime.Before(slots[1].StartTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID, doctorID, patientID, apptID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE doctor_slots s SET is_booked = true\\s+FROM doctors d\\s+WHERE s.id = \\$1 AND s.is_booked = false").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "start_time", "hourly_rate"}).
			AddRow(doctorID, start, int64(5000)))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(apptID, patientID, pgxmock.AnyArg(), pgxmock.AnyArg(), start,
			"pending", "unpaid", "notes", int64(5000), int64(1500), int64(3500), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	a, err := repo.BookSlot(context.Background(), BookSlotParams{
		AppointmentID: apptID,
		SlotID:        slotID,
		PatientID:     patientID,
		Notes:         "notes",
		Price:         DefaultPricing().ForRate,
		Now:           now,
	})
	require.NoError(t, err)
	assert.Equal(t, doctorID, *a.DoctorID)
	assert.Equal(t, slotID, *a.SlotID)
	assert.Equal(t, int64(3500), a.Payout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookSlotUnavailable(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE doctor_slots s SET is_booked = true").
		WithArgs(slotID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), BookSlotParams{
		AppointmentID: uuid.New(),
		SlotID:        slotID,
		PatientID:     uuid.New(),
		Price:         DefaultPricing().ForRate,
		Now:           time.Now(),
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBookSlotHeldByActiveAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE doctor_slots s SET is_booked = true").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "start_time", "hourly_rate"}).
			AddRow(uuid.New(), time.Now(), int64(5000)))
	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: activeSlotIndex})
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), BookSlotParams{
		AppointmentID: uuid.New(),
		SlotID:        slotID,
		PatientID:     uuid.New(),
		Price:         DefaultPricing().ForRate,
		Now:           time.Now(),
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCancelThenRebookSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	firstID, secondID := uuid.New(), uuid.New()
	doctorID, patientID, otherPatient, slotID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(-48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments SET status = \\$2").
		WithArgs(firstID, "cancelled", []string{"pending", "confirmed"}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(firstID, patientID, &doctorID, &slotID, start, "cancelled", "unpaid", "", int64(5000), int64(1500), int64(3500), now))
	mock.ExpectExec("UPDATE doctor_slots SET is_booked = false WHERE id = \\$1").
		WithArgs(slotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE doctor_slots s SET is_booked = true").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "start_time", "hourly_rate"}).
			AddRow(doctorID, start, int64(5000)))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(secondID, otherPatient, pgxmock.AnyArg(), pgxmock.AnyArg(), start,
			"pending", "unpaid", "", int64(5000), int64(1500), int64(3500), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	cancelled, err := repo.Transition(ctx, Transition{
		AppointmentID: firstID,
		To:            StatusCancelled,
		PatientID:     &patientID,
		ReleaseSlot:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	again, err := repo.BookSlot(ctx, BookSlotParams{
		AppointmentID: secondID,
		SlotID:        slotID,
		PatientID:     otherPatient,
		Price:         DefaultPricing().ForRate,
		Now:           now,
	})
	require.NoError(t, err)
	assert.Equal(t, slotID, *again.SlotID)
	assert.Equal(t, StatusPending, again.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaim(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, doctorID, patientID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE appointments SET doctor_id = \\$2, status = 'confirmed'\\s+WHERE id = \\$1 AND doctor_id IS NULL AND status = 'pending'").
		WithArgs(id, doctorID).
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(id, patientID, &doctorID, nil, now, "confirmed", "paid", "", int64(4000), int64(2250), int64(1750), now))

	a, err := repo.Claim(context.Background(), id, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
	assert.Equal(t, PaymentPaid, a.PaymentStatus)
	require.NotNil(t, a.DoctorID)
	assert.Equal(t, doctorID, *a.DoctorID)
	assert.Nil(t, a.SlotID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimAlreadyTaken(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, other, patientID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE appointments SET doctor_id").
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .* FROM appointments WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(id, patientID, &other, nil, now, "confirmed", "paid", "", int64(4000), int64(2250), int64(1750), now))

	_, err := repo.Claim(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments SET doctor_id").
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .* FROM appointments WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Claim(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionReleasesSlot(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, doctorID, patientID, slotID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments SET status = \\$2").
		WithArgs(id, "cancelled", []string{"pending", "confirmed"}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(id, patientID, &doctorID, &slotID, now, "cancelled", "paid", "", int64(5000), int64(1500), int64(3500), now))
	mock.ExpectExec("UPDATE doctor_slots SET is_booked = false WHERE id = \\$1").
		WithArgs(slotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err := repo.Transition(context.Background(), Transition{
		AppointmentID: id,
		To:            StatusCancelled,
		PatientID:     &patientID,
		ReleaseSlot:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionExplainsFailure(t *testing.T) {
	now := time.Now().UTC()
	patientID, doctorID := uuid.New(), uuid.New()

	cases := []struct {
		name   string
		status string
		t      func(id uuid.UUID) Transition
		want   error
	}{
		{
			name:   "wrong doctor",
			status: "pending",
			t: func(id uuid.UUID) Transition {
				other := uuid.New()
				return Transition{AppointmentID: id, To: StatusConfirmed, DoctorID: &other}
			},
			want: ErrForbidden,
		},
		{
			name:   "wrong state",
			status: "pending",
			t: func(id uuid.UUID) Transition {
				return Transition{AppointmentID: id, To: StatusCompleted, DoctorID: &doctorID}
			},
			want: ErrInvalidState,
		},
		{
			name:   "raced",
			status: "pending",
			t: func(id uuid.UUID) Transition {
				return Transition{AppointmentID: id, To: StatusConfirmed, DoctorID: &doctorID}
			},
			want: ErrConflict,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			id := uuid.New()
			mock.ExpectBegin()
			mock.ExpectQuery("UPDATE appointments SET status = \\$2").
				WillReturnError(pgx.ErrNoRows)
			mock.ExpectQuery("SELECT .* FROM appointments WHERE id = \\$1").
				WithArgs(id).
				WillReturnRows(pgxmock.NewRows(appointmentCols).
					AddRow(id, patientID, &doctorID, nil, now, tc.status, "paid", "", int64(5000), int64(1500), int64(3500), now))
			mock.ExpectRollback()

			_, err := repo.Transition(context.Background(), tc.t(id))
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresMarkPaidForbidden(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, owner := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE appointments SET payment_status = 'paid'").
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT .* FROM appointments WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(id, owner, nil, nil, now, "pending", "unpaid", "", int64(4000), int64(2250), int64(1750), now))

	_, err := repo.MarkPaid(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateReviewRecomputesRating(t *testing.T) {
	repo, mock := newMockRepo(t)
	apptID, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()
	rv := &Review{ID: uuid.New(), AppointmentID: apptID, PatientID: patientID, Rating: 3, CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT patient_id, doctor_id, status FROM appointments WHERE id = \\$1 FOR UPDATE").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"patient_id", "doctor_id", "status"}).
			AddRow(patientID, &doctorID, "completed"))
	mock.ExpectExec("SELECT id FROM doctors WHERE id = \\$1 FOR UPDATE").
		WithArgs(doctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, apptID, pgxmock.AnyArg(), patientID, 3, "", rv.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE doctors d\\s+SET rating = s.avg_rating, review_count = s.review_count").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"rating", "review_count"}).AddRow(4.0, 3))
	mock.ExpectCommit()

	agg, err := repo.CreateReview(context.Background(), rv)
	require.NoError(t, err)
	assert.Equal(t, 4.0, agg.Rating)
	assert.Equal(t, 3, agg.ReviewCount)
	require.NotNil(t, rv.DoctorID)
	assert.Equal(t, doctorID, *rv.DoctorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateReviewDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	apptID, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT patient_id, doctor_id, status FROM appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"patient_id", "doctor_id", "status"}).
			AddRow(patientID, &doctorID, "completed"))
	mock.ExpectExec("SELECT id FROM doctors").
		WithArgs(doctorID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO reviews").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	_, err := repo.CreateReview(context.Background(), &Review{ID: uuid.New(), AppointmentID: apptID, PatientID: patientID, Rating: 5})
	assert.ErrorIs(t, err, ErrDuplicateReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateReviewGuards(t *testing.T) {
	patientID := uuid.New()
	cases := []struct {
		name    string
		owner   uuid.UUID
		status  string
		missing bool
		want    error
	}{
		{name: "missing", missing: true, want: ErrNotFound},
		{name: "not owner", owner: uuid.New(), status: "completed", want: ErrForbidden},
		{name: "not completed", owner: patientID, status: "confirmed", want: ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			apptID := uuid.New()
			mock.ExpectBegin()
			q := mock.ExpectQuery("SELECT patient_id, doctor_id, status FROM appointments").WithArgs(apptID)
			if tc.missing {
				q.WillReturnError(pgx.ErrNoRows)
			} else {
				q.WillReturnRows(pgxmock.NewRows([]string{"patient_id", "doctor_id", "status"}).
					AddRow(tc.owner, nil, tc.status))
			}
			mock.ExpectRollback()

			_, err := repo.CreateReview(context.Background(), &Review{ID: uuid.New(), AppointmentID: apptID, PatientID: patientID, Rating: 5})
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresListForPatient(t *testing.T) {
	repo, mock := newMockRepo(t)
	patientID, doctorID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	cols := append(append([]string{}, appointmentCols...), "counterpart_name", "has_review")

	mock.ExpectQuery("FROM appointments a\\s+LEFT JOIN doctors d ON d.id = a.doctor_id.*WHERE a.patient_id = \\$1\\s+ORDER BY a.scheduled_for DESC").
		WithArgs(patientID).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), patientID, &doctorID, nil, now, "completed", "paid", "", int64(5000), int64(1500), int64(3500), now, "Meredith Grey", true))

	views, err := repo.ListForPatient(context.Background(), patientID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Meredith Grey", views[0].CounterpartName)
	assert.True(t, views[0].HasReview)
	assert.Equal(t, StatusCompleted, views[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
