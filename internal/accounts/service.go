package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// Service exposes account lookups and subscription upgrades.
type Service struct {
	repo   Repository
	period time.Duration
	now    func() time.Time
	logger *logging.Logger
}

// NewService builds a service. period is how long an upgrade lasts.
func NewService(repo Repository, period time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}
	return &Service{repo: repo, period: period, now: time.Now, logger: logger}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns the account for id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// PlanFor returns the tier currently in force for id.
func (s *Service) PlanFor(ctx context.Context, id uuid.UUID) (Plan, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PlanFree, err
	}
	return a.EffectivePlan(s.now()), nil
}

// Upgrade moves the account to premium for one subscription period starting now.
func (s *Service) Upgrade(ctx context.Context, id uuid.UUID) (*Account, error) {
	expiry := s.now().UTC().Add(s.period)
	a, err := s.repo.SetPlan(ctx, id, PlanPremium, &expiry)
	if err != nil {
		return nil, fmt.Errorf("accounts: upgrade: %w", err)
	}
	s.logger.Info("subscription upgraded", "user_id", id, "expires_at", expiry)
	return a, nil
}
