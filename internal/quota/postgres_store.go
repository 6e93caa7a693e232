package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps quota state in columns on the users table.
type PostgresStore struct {
	db pgxDB
}

func NewPostgresStore(db pgxDB) *PostgresStore {
	if db == nil {
		panic("quota: pgx pool required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, userID uuid.UUID) (State, error) {
	var (
		st        State
		resetDate *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT daily_count, last_reset_date, burst_count, burst_window_start
		FROM users WHERE id = $1
	`, userID).Scan(&st.DailyCount, &resetDate, &st.BurstCount, &st.BurstWindowStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, ErrUnknownUser
		}
		return State{}, fmt.Errorf("quota: postgres load: %w", err)
	}
	if resetDate != nil {
		st.LastResetDate = utcDay(*resetDate)
	}
	return st, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID uuid.UUID, st State) error {
	var resetDate *time.Time
	if !st.LastResetDate.IsZero() {
		d := st.LastResetDate
		resetDate = &d
	}
	ct, err := s.db.Exec(ctx, `
		UPDATE users
		SET daily_count = $2, last_reset_date = $3, burst_count = $4, burst_window_start = $5
		WHERE id = $1
	`, userID, st.DailyCount, resetDate, st.BurstCount, st.BurstWindowStart)
	if err != nil {
		return fmt.Errorf("quota: postgres save: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrUnknownUser
	}
	return nil
}
