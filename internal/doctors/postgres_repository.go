package doctors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type pgxDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads the doctors table.
type PostgresRepository struct {
	db pgxDB
}

func NewPostgresRepository(db pgxDB) *PostgresRepository {
	if db == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const doctorColumns = `id, user_id, full_name, specialty, bio, image_url, hourly_rate, years_experience, is_verified, rating, review_count`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Specialty, &d.Bio, &d.ImageURL,
		&d.HourlyRate, &d.YearsExperience, &d.IsVerified, &d.Rating, &d.ReviewCount)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]Doctor, error) {
	f.normalize()
	rows, err := r.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE is_verified = true AND ($1 = '' OR specialty ILIKE $1)
		ORDER BY rating DESC, review_count DESC, full_name ASC
		LIMIT $2 OFFSET $3
	`, f.Specialty, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("doctors: list: %w", err)
	}
	defer rows.Close()

	out := []Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: scan: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctors: list: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: get: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, `
		UPDATE doctors SET
			bio = COALESCE($2, bio),
			hourly_rate = COALESCE($3, hourly_rate),
			years_experience = COALESCE($4, years_experience),
			image_url = COALESCE($5, image_url)
		WHERE id = $1
		RETURNING `+doctorColumns,
		id, u.Bio, u.HourlyRate, u.YearsExperience, u.ImageURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: update profile: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(payout) FROM appointments WHERE doctor_id = d.id AND payment_status = 'paid'), 0)::bigint,
			(SELECT COUNT(DISTINCT patient_id) FROM appointments WHERE doctor_id = d.id)::int,
			d.rating,
			d.review_count,
			d.years_experience
		FROM doctors d
		WHERE d.id = $1
	`, id).Scan(&s.Earnings, &s.TotalPatients, &s.Rating, &s.Reviews, &s.YearsExperience)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: stats: %w", err)
	}
	return &s, nil
}
