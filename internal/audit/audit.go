// Package audit keeps an append-only trail of appointment activity.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/mediq-platform/internal/appointments"
)

// Event is one immutable audit record.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Action    string          `json:"action"`
	ActorID   uuid.UUID       `json:"actor_id"`
	Resource  string          `json:"resource"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filter narrows Query results. Zero fields are ignored.
type Filter struct {
	ActorID  uuid.UUID
	Resource string
	Action   string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Recorder writes audit events through database/sql.
type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Log inserts evt, assigning an id and timestamp when missing.
func (r *Recorder) Log(ctx context.Context, evt Event) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = r.now().UTC()
	}
	if len(evt.Details) == 0 {
		evt.Details = json.RawMessage(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, action, actor_id, resource, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.ID, evt.Action, evt.ActorID, evt.Resource, []byte(evt.Details), evt.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: log event: %w", err)
	}
	return nil
}

type appointmentDetails struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	Amount        int64      `json:"amount"`
	Rating        int        `json:"rating,omitempty"`
}

// AppointmentChanged records an appointment event.
func (r *Recorder) AppointmentChanged(ctx context.Context, evt appointments.Event) error {
	details, err := json.Marshal(appointmentDetails{
		PatientID:     evt.PatientID,
		DoctorID:      evt.DoctorID,
		Status:        string(evt.Status),
		PaymentStatus: string(evt.PaymentStatus),
		Amount:        evt.Amount,
		Rating:        evt.Rating,
	})
	if err != nil {
		return fmt.Errorf("audit: encode details: %w", err)
	}
	return r.Log(ctx, Event{
		Action:    string(evt.Type),
		ActorID:   evt.ActorID,
		Resource:  "appointment:" + evt.AppointmentID.String(),
		Details:   details,
		CreatedAt: evt.OccurredAt,
	})
}

// Query returns matching events, newest first.
func (r *Recorder) Query(ctx context.Context, f Filter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorID != uuid.Nil {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Resource != "" {
		add("resource = $%d", f.Resource)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at <= $%d", f.Until)
	}

	query := `SELECT id, action, actor_id, resource, details, created_at FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.Resource, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	return events, nil
}
