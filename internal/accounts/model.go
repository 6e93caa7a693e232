package accounts

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/mediq-platform/internal/auth"
)

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// ErrNotFound is returned when no account exists for the given id.
var ErrNotFound = errors.New("accounts: not found")

// Account is a registered user of the platform.
type Account struct {
	ID                 uuid.UUID  `json:"id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Email              string     `json:"email"`
	Role               auth.Role  `json:"role"`
	Plan               Plan       `json:"plan"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// EffectivePlan returns the tier in force at now. A premium plan without an
// expiry never lapses.
func (a *Account) EffectivePlan(now time.Time) Plan {
	if a.Plan != PlanPremium {
		return PlanFree
	}
	if a.SubscriptionExpiry != nil && !now.Before(*a.SubscriptionExpiry) {
		return PlanFree
	}
	return PlanPremium
}
