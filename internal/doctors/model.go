package doctors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("doctors: not found")
	ErrInvalidInput = errors.New("doctors: invalid input")
)

// Doctor is a practitioner's public profile. Rating and ReviewCount are
// maintained by the review path and are read-only here.
type Doctor struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	FullName        string    `json:"full_name"`
	Specialty       string    `json:"specialty"`
	Bio             string    `json:"bio"`
	ImageURL        string    `json:"image_url,omitempty"`
	HourlyRate      int64     `json:"hourly_rate"`
	YearsExperience int       `json:"years_experience"`
	IsVerified      bool      `json:"is_verified"`
	Rating          float64   `json:"rating"`
	ReviewCount     int       `json:"review_count"`
}

// ListFilter narrows the public directory.
type ListFilter struct {
	Specialty string
	Limit     int
	Offset    int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBioLength    = 2000
)

func (f *ListFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ProfileUpdate changes only the fields that are set. A new hourly rate
// applies to future bookings only.
type ProfileUpdate struct {
	Bio             *string `json:"bio,omitempty"`
	HourlyRate      *int64  `json:"hourly_rate,omitempty"`
	YearsExperience *int    `json:"years_experience,omitempty"`
	ImageURL        *string `json:"image_url,omitempty"`
}

// Validate checks ranges on the fields being changed.
func (u ProfileUpdate) Validate() error {
	if u.Bio != nil && len(*u.Bio) > maxBioLength {
		return fmt.Errorf("%w: bio longer than %d characters", ErrInvalidInput, maxBioLength)
	}
	if u.HourlyRate != nil && *u.HourlyRate < 0 {
		return fmt.Errorf("%w: hourly_rate must not be negative", ErrInvalidInput)
	}
	if u.YearsExperience != nil && (*u.YearsExperience < 0 || *u.YearsExperience > 80) {
		return fmt.Errorf("%w: years_experience out of range", ErrInvalidInput)
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Bio == nil && u.HourlyRate == nil && u.YearsExperience == nil && u.ImageURL == nil
}

// Stats summarizes a doctor's practice.
type Stats struct {
	Earnings        int64   `json:"earnings"`
	TotalPatients   int     `json:"total_patients"`
	Rating          float64 `json:"rating"`
	Reviews         int     `json:"reviews"`
	YearsExperience int     `json:"years_experience"`
}
