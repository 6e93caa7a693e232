package doctors

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mediq-platform/pkg/logging"
)

var doctorsTracer = otel.Tracer("mediq.internal.doctors")

// Service serves the doctor directory and self-service profile.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("doctors: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Doctor, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.Get(ctx, id)
}

// UpdateProfile applies u to the doctor's own profile.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Doctor, error) {
	ctx, span := doctorsTracer.Start(ctx, "doctors.update_profile")
	defer span.End()
	span.SetAttributes(attribute.String("mediq.doctor_id", id.String()))

	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.Empty() {
		return s.repo.Get(ctx, id)
	}
	d, err := s.repo.UpdateProfile(ctx, id, u)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("doctor profile updated", "doctor_id", id, "hourly_rate", d.HourlyRate)
	return d, nil
}

func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	return s.repo.Stats(ctx, id)
}
