package doctors

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and updates doctor profiles.
type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Doctor, error)
	Get(ctx context.Context, id uuid.UUID) (*Doctor, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Doctor, error)
	Stats(ctx context.Context, id uuid.UUID) (*Stats, error)
}
