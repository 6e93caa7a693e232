package appointments

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("appointments: not found")
	ErrForbidden             = errors.New("appointments: forbidden")
	ErrConflict              = errors.New("appointments: conflict")
	ErrInvalidState          = errors.New("appointments: invalid state")
	ErrDuplicateReview       = errors.New("appointments: review already submitted")
	ErrInvalidInput          = errors.New("appointments: invalid input")
	ErrSlotUnavailable       = fmt.Errorf("%w: slot unavailable", ErrConflict)
	ErrAlreadyClaimed  error = alreadyClaimedError{}
)

// alreadyClaimedError matches both ErrNotFound (no unassigned appointment with
// that id) and ErrConflict (another doctor took it).
type alreadyClaimedError struct{}

func (alreadyClaimedError) Error() string { return "appointments: already claimed" }

func (alreadyClaimedError) Is(target error) bool {
	return target == ErrNotFound || target == ErrConflict
}
