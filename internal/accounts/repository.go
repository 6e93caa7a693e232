package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository loads and updates accounts.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	SetPlan(ctx context.Context, id uuid.UUID, plan Plan, expiry *time.Time) (*Account, error)
}

// InMemoryRepository keeps accounts in a map. Used for local development and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{accounts: make(map[uuid.UUID]*Account)}
}

// Put inserts or replaces an account.
func (r *InMemoryRepository) Put(a *Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *a
	r.accounts[a.ID] = &clone
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *InMemoryRepository) SetPlan(ctx context.Context, id uuid.UUID, plan Plan, expiry *time.Time) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Plan = plan
	if expiry != nil {
		exp := *expiry
		a.SubscriptionExpiry = &exp
	} else {
		a.SubscriptionExpiry = nil
	}
	clone := *a
	return &clone, nil
}
