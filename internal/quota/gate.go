// Package quota gates advice requests behind a per-user daily allowance and a
// rolling burst window.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/observability/metrics"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

var quotaTracer = otel.Tracer("mediq.internal.quota")

var (
	// ErrQuotaExceeded is returned when a free account has used its daily allowance.
	ErrQuotaExceeded = errors.New("quota: daily limit reached")
	// ErrRateLimited is returned when the burst window is full, for every plan.
	ErrRateLimited = errors.New("quota: too many requests")
	// ErrUnknownUser is returned by stores that require an existing account row.
	ErrUnknownUser = errors.New("quota: unknown user")
)

// State is the persisted usage of one user. LastResetDate is a UTC midnight;
// the zero value means the user has never been counted.
type State struct {
	DailyCount       int
	LastResetDate    time.Time
	BurstCount       int
	BurstWindowStart *time.Time
}

// Store loads and saves quota state. Load returns the zero State for users
// with no recorded usage.
type Store interface {
	Load(ctx context.Context, userID uuid.UUID) (State, error)
	Save(ctx context.Context, userID uuid.UUID, st State) error
}

// Limits configures the gate.
type Limits struct {
	DailyFree   int
	Burst       int
	BurstWindow time.Duration
}

// DefaultLimits allows 5 free requests per day and 30 per hour for everyone.
func DefaultLimits() Limits {
	return Limits{DailyFree: 5, Burst: 30, BurstWindow: time.Hour}
}

// Gate applies Limits to a Store.
//
// The read-modify-write per user is not serialized: two concurrent requests
// from one user can both pass a check. The limits are soft.
type Gate struct {
	store   Store
	limits  Limits
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.ConsultMetrics
}

// NewGate builds a gate. Non-positive limits fall back to DefaultLimits.
func NewGate(store Store, limits Limits, logger *logging.Logger) *Gate {
	if store == nil {
		panic("quota: store required")
	}
	def := DefaultLimits()
	if limits.DailyFree <= 0 {
		limits.DailyFree = def.DailyFree
	}
	if limits.Burst <= 0 {
		limits.Burst = def.Burst
	}
	if limits.BurstWindow <= 0 {
		limits.BurstWindow = def.BurstWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{store: store, limits: limits, now: time.Now, logger: logger}
}

// SetClock overrides the time source.
func (g *Gate) SetClock(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// SetMetrics attaches Prometheus counters.
func (g *Gate) SetMetrics(m *metrics.ConsultMetrics) {
	g.metrics = m
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Do runs fn if userID is within its limits, then counts the request. When
// the gate refuses or fn fails nothing is persisted.
func (g *Gate) Do(ctx context.Context, userID uuid.UUID, plan accounts.Plan, fn func(ctx context.Context) error) (err error) {
	ctx, span := quotaTracer.Start(ctx, "quota.do")
	defer span.End()
	span.SetAttributes(
		attribute.String("mediq.user_id", userID.String()),
		attribute.String("mediq.plan", string(plan)),
	)
	result := "allowed"
	defer func() {
		g.metrics.ObserveQuota(string(plan), result)
		if err != nil {
			span.RecordError(err)
		}
	}()

	st, err := g.store.Load(ctx, userID)
	if err != nil {
		result = "error"
		return fmt.Errorf("quota: load: %w", err)
	}

	now := g.now().UTC()
	today := utcDay(now)
	if !st.LastResetDate.Equal(today) {
		st.DailyCount = 0
		st.LastResetDate = today
		st.BurstCount = 0
		start := now
		st.BurstWindowStart = &start
	}

	if plan != accounts.PlanPremium && st.DailyCount >= g.limits.DailyFree {
		result = "quota_exceeded"
		return ErrQuotaExceeded
	}

	if st.BurstWindowStart == nil || now.Sub(*st.BurstWindowStart) > g.limits.BurstWindow {
		start := now
		st.BurstWindowStart = &start
		st.BurstCount = 0
	}
	if st.BurstCount >= g.limits.Burst {
		result = "rate_limited"
		return ErrRateLimited
	}

	if err := fn(ctx); err != nil {
		result = "upstream_error"
		return err
	}

	st.DailyCount++
	st.BurstCount++
	if err := g.store.Save(ctx, userID, st); err != nil {
		result = "error"
		return fmt.Errorf("quota: save: %w", err)
	}
	g.logger.Debug("quota consumed", "user_id", userID, "daily_count", st.DailyCount, "burst_count", st.BurstCount)
	return nil
}

// CheckAndConsume counts one request without calling anything.
func (g *Gate) CheckAndConsume(ctx context.Context, userID uuid.UUID, plan accounts.Plan) error {
	return g.Do(ctx, userID, plan, func(context.Context) error { return nil })
}

// Usage returns the stored state for userID.
func (g *Gate) Usage(ctx context.Context, userID uuid.UUID) (State, error) {
	return g.store.Load(ctx, userID)
}
