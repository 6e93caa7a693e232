package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"

	activeSlotIndex = "appointments_active_slot"
)

type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the consultation ledger in Postgres.
type PostgresRepository struct {
	db pgxDB
}

// NewPostgresRepository wires a repository to a pgx pool (or pgxmock in tests).
func NewPostgresRepository(db pgxDB) *PostgresRepository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id, patient_id, doctor_id, slot_id, scheduled_for, status, payment_status, notes, amount, commission, payout, created_at`

// prefixed columns for joined queries
const appointmentColumnsA = `a.id, a.patient_id, a.doctor_id, a.slot_id, a.scheduled_for, a.status, a.payment_status, a.notes, a.amount, a.commission, a.payout, a.created_at`

func scanAppointment(row pgx.Row, extra ...any) (*Appointment, error) {
	var (
		a               Appointment
		status, payment string
	)
	dest := append([]any{
		&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.ScheduledFor,
		&status, &payment, &a.Notes, &a.Amount, &a.Commission, &a.Payout, &a.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.PaymentStatus = PaymentStatus(payment)
	return &a, nil
}

func (r *PostgresRepository) CreateSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) (*Slot, error) {
	s := &Slot{ID: uuid.New(), DoctorID: doctorID, StartTime: start}
	_, err := r.db.Exec(ctx, `
		INSERT INTO doctor_slots (id, doctor_id, start_time, is_booked)
		VALUES ($1, $2, $3, false)
	`, s.ID, s.DoctorID, s.StartTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: insert slot: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, start_time, is_booked
		FROM doctor_slots
		WHERE doctor_id = $1 AND is_booked = false
		ORDER BY start_time ASC
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list slots: %w", err)
	}
	defer rows.Close()

	slots := []Slot{}
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.StartTime, &s.IsBooked); err != nil {
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list slots: %w", err)
	}
	return slots, nil
}

func (r *PostgresRepository) BookSlot(ctx context.Context, p BookSlotParams) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		doctorID   uuid.UUID
		start      time.Time
		hourlyRate int64
	)
	err = tx.QueryRow(ctx, `
		UPDATE doctor_slots s SET is_booked = true
		FROM doctors d
		WHERE s.id = $1 AND s.is_booked = false AND d.id = s.doctor_id
		RETURNING s.doctor_id, s.start_time, d.hourly_rate
	`, p.SlotID).Scan(&doctorID, &start, &hourlyRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("appointments: reserve slot: %w", err)
	}

	charge := p.Price(hourlyRate)
	slotID := p.SlotID
	a := &Appointment{
		ID:            p.AppointmentID,
		PatientID:     p.PatientID,
		DoctorID:      &doctorID,
		SlotID:        &slotID,
		ScheduledFor:  start,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Notes:         p.Notes,
		Amount:        charge.Amount,
		Commission:    charge.Commission,
		Payout:        charge.Payout,
		CreatedAt:     p.Now,
	}
	if err := insertAppointment(ctx, tx, a); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == activeSlotIndex {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit booking: %w", err)
	}
	return a, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAppointment(ctx context.Context, db execer, a *Appointment) error {
	_, err := db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.PatientID, a.DoctorID, a.SlotID, a.ScheduledFor,
		string(a.Status), string(a.PaymentStatus), a.Notes,
		a.Amount, a.Commission, a.Payout, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert appointment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	return insertAppointment(ctx, r.db, a)
}

func (r *PostgresRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) listViews(ctx context.Context, query string, args ...any) ([]View, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	views := []View{}
	for rows.Next() {
		var v View
		a, err := scanAppointment(rows, &v.CounterpartName, &v.HasReview)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		v.Appointment = *a
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return views, nil
}

const hasReviewExpr = `EXISTS (SELECT 1 FROM reviews rv WHERE rv.appointment_id = a.id)`

func (r *PostgresRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]View, error) {
	return r.listViews(ctx, `
		SELECT `+appointmentColumnsA+`, COALESCE(d.full_name, ''), `+hasReviewExpr+`
		FROM appointments a
		LEFT JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.scheduled_for DESC, a.created_at DESC
	`, patientID)
}

// patientSide selects appointments with the patient's name as counterpart.
const patientSide = `
		SELECT ` + appointmentColumnsA + `, COALESCE(p.first_name || ' ' || p.last_name, ''), ` + hasReviewExpr + `
		FROM appointments a
		LEFT JOIN users p ON p.id = a.patient_id
`

func (r *PostgresRepository) ListQueue(ctx context.Context) ([]View, error) {
	return r.listViews(ctx, patientSide+`
		WHERE a.doctor_id IS NULL AND a.status = 'pending' AND a.payment_status = 'paid'
		ORDER BY a.created_at ASC
	`)
}

func (r *PostgresRepository) ListDoctorRequests(ctx context.Context, doctorID uuid.UUID) ([]View, error) {
	return r.listViews(ctx, patientSide+`
		WHERE a.doctor_id = $1 AND a.status = 'pending' AND a.payment_status = 'paid'
		ORDER BY a.created_at ASC
	`, doctorID)
}

func (r *PostgresRepository) ListDoctorConfirmed(ctx context.Context, doctorID uuid.UUID) ([]View, error) {
	return r.listViews(ctx, patientSide+`
		WHERE a.doctor_id = $1 AND a.status = 'confirmed'
		ORDER BY a.scheduled_for ASC
	`, doctorID)
}

func (r *PostgresRepository) Claim(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		UPDATE appointments SET doctor_id = $2, status = 'confirmed'
		WHERE id = $1 AND doctor_id IS NULL AND status = 'pending'
		RETURNING `+appointmentColumns,
		id, doctorID))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: claim: %w", err)
	}

	current, err := r.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.DoctorID != nil {
		return nil, ErrAlreadyClaimed
	}
	return nil, ErrNotFound
}

func (r *PostgresRepository) Transition(ctx context.Context, t Transition) (*Appointment, error) {
	from := make([]string, 0, 2)
	for _, s := range AllowedFrom(t.To) {
		from = append(from, string(s))
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments SET status = $2
		WHERE id = $1
		  AND status = ANY($3)
		  AND ($4::uuid IS NULL OR patient_id = $4)
		  AND ($5::uuid IS NULL OR doctor_id = $5)
		RETURNING `+appointmentColumns,
		t.AppointmentID, string(t.To), from, t.PatientID, t.DoctorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.explainTransition(ctx, t)
		}
		return nil, fmt.Errorf("appointments: transition: %w", err)
	}

	if t.ReleaseSlot && a.SlotID != nil {
		if _, err := tx.Exec(ctx, `UPDATE doctor_slots SET is_booked = false WHERE id = $1`, *a.SlotID); err != nil {
			return nil, fmt.Errorf("appointments: release slot: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit transition: %w", err)
	}
	return a, nil
}

// explainTransition classifies a guarded update that matched no row.
func (r *PostgresRepository) explainTransition(ctx context.Context, t Transition) error {
	current, err := r.GetAppointment(ctx, t.AppointmentID)
	if err != nil {
		return err
	}
	if err := t.check(current); err != nil {
		return err
	}
	// state moved between the update and the lookup
	return ErrConflict
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, id, patientID uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		UPDATE appointments SET payment_status = 'paid'
		WHERE id = $1 AND patient_id = $2
		RETURNING `+appointmentColumns,
		id, patientID))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: mark paid: %w", err)
	}
	if _, err := r.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrForbidden
}

func (r *PostgresRepository) CreateReview(ctx context.Context, rv *Review) (*DoctorRating, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		patientID uuid.UUID
		doctorID  *uuid.UUID
		status    string
	)
	err = tx.QueryRow(ctx, `
		SELECT patient_id, doctor_id, status FROM appointments WHERE id = $1 FOR UPDATE
	`, rv.AppointmentID).Scan(&patientID, &doctorID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load for review: %w", err)
	}
	if patientID != rv.PatientID {
		return nil, ErrForbidden
	}
	if Status(status) != StatusCompleted {
		return nil, ErrInvalidState
	}
	rv.DoctorID = doctorID

	if doctorID != nil {
		// serializes aggregate recomputation per doctor
		if _, err := tx.Exec(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, *doctorID); err != nil {
			return nil, fmt.Errorf("appointments: lock doctor: %w", err)
		}
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO reviews (id, appointment_id, doctor_id, patient_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (appointment_id) DO NOTHING
	`, rv.ID, rv.AppointmentID, rv.DoctorID, rv.PatientID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrDuplicateReview
	}

	var rating *DoctorRating
	if doctorID != nil {
		rating = &DoctorRating{DoctorID: *doctorID}
		err = tx.QueryRow(ctx, `
			UPDATE doctors d
			SET rating = s.avg_rating, review_count = s.review_count
			FROM (
				SELECT COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float8 AS avg_rating,
				       COUNT(*)::int AS review_count
				FROM reviews WHERE doctor_id = $1
			) s
			WHERE d.id = $1
			RETURNING d.rating, d.review_count
		`, *doctorID).Scan(&rating.Rating, &rating.ReviewCount)
		if err != nil {
			return nil, fmt.Errorf("appointments: recompute rating: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit review: %w", err)
	}
	return rating, nil
}

func (r *PostgresRepository) GetDoctorRating(ctx context.Context, doctorID uuid.UUID) (*DoctorRating, error) {
	rating := &DoctorRating{DoctorID: doctorID}
	err := r.db.QueryRow(ctx, `SELECT rating, review_count FROM doctors WHERE id = $1`, doctorID).
		Scan(&rating.Rating, &rating.ReviewCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get rating: %w", err)
	}
	return rating, nil
}
