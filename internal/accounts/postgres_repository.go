package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wolfman30/mediq-platform/internal/auth"
)

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads accounts from the users table.
type PostgresRepository struct {
	db queryRower
}

// NewPostgresRepository wires a repository to a pgx pool (or pgxmock in tests).
func NewPostgresRepository(db queryRower) *PostgresRepository {
	if db == nil {
		panic("accounts: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const accountColumns = `id, first_name, last_name, email, role, plan, subscription_expiry, created_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("accounts: get %s: %w", id, err)
	}
	return a, nil
}

func (r *PostgresRepository) SetPlan(ctx context.Context, id uuid.UUID, plan Plan, expiry *time.Time) (*Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users SET plan = $2, subscription_expiry = $3
		WHERE id = $1
		RETURNING `+accountColumns,
		id, string(plan), expiry)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("accounts: set plan %s: %w", id, err)
	}
	return a, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a          Account
		role, plan string
		expiry     *time.Time
	)
	if err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &role, &plan, &expiry, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = auth.Role(role)
	a.Plan = Plan(plan)
	a.SubscriptionExpiry = expiry
	return &a, nil
}
