package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mediq-platform/internal/accounts"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGate(t *testing.T, store Store, limits Limits) (*Gate, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}
	g := NewGate(store, limits, nil)
	g.SetClock(c.now)
	return g, c
}

func TestFreePlanDailyLimit(t *testing.T) {
	g, c := newTestGate(t, NewMemoryStore(), DefaultLimits())
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanFree), "request %d", i+1)
	}
	assert.ErrorIs(t, g.CheckAndConsume(ctx, user, accounts.PlanFree), ErrQuotaExceeded)

	st, err := g.Usage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 5, st.DailyCount)

	c.advance(24 * time.Hour)
	require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanFree))
	st, err = g.Usage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, st.DailyCount)
	assert.Equal(t, 1, st.BurstCount)
}

func TestPremiumIgnoresDailyLimit(t *testing.T) {
	g, _ := newTestGate(t, NewMemoryStore(), DefaultLimits())
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 12; i++ {
		require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium))
	}
}

func TestBurstWindow(t *testing.T) {
	g, c := newTestGate(t, NewMemoryStore(), DefaultLimits())
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 30; i++ {
		require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium))
	}
	assert.ErrorIs(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium), ErrRateLimited)

	// exactly one hour is still inside the window
	c.advance(time.Hour)
	assert.ErrorIs(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium), ErrRateLimited)

	c.advance(time.Second)
	require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium))
	st, err := g.Usage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, st.BurstCount)
	require.NotNil(t, st.BurstWindowStart)
	assert.True(t, c.now().Equal(*st.BurstWindowStart))
	assert.Equal(t, 31, st.DailyCount)
}

func TestBurstAppliesToFreePlan(t *testing.T) {
	g, _ := newTestGate(t, NewMemoryStore(), Limits{DailyFree: 100, Burst: 3, BurstWindow: time.Hour})
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanFree))
	}
	assert.ErrorIs(t, g.CheckAndConsume(ctx, user, accounts.PlanFree), ErrRateLimited)
}

func TestNewDayResetsBurstWindow(t *testing.T) {
	g, c := newTestGate(t, NewMemoryStore(), DefaultLimits())
	c.t = time.Date(2025, 6, 10, 23, 30, 0, 0, time.UTC)
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 30; i++ {
		require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium))
	}
	assert.ErrorIs(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium), ErrRateLimited)

	c.advance(40 * time.Minute)
	require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanPremium))
}

func TestDayBoundaryIsUTC(t *testing.T) {
	g, c := newTestGate(t, NewMemoryStore(), DefaultLimits())
	ctx := context.Background()
	user := uuid.New()

	// 19:00 in UTC-5 is already the next UTC day
	est := time.FixedZone("EST", -5*3600)
	c.t = time.Date(2025, 6, 10, 17, 0, 0, 0, est)
	for i := 0; i < 5; i++ {
		require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanFree))
	}
	c.t = time.Date(2025, 6, 10, 18, 30, 0, 0, est)
	assert.ErrorIs(t, g.CheckAndConsume(ctx, user, accounts.PlanFree), ErrQuotaExceeded)

	c.t = time.Date(2025, 6, 10, 19, 0, 1, 0, est)
	require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanFree))
}

func TestFailedCallIsNotCounted(t *testing.T) {
	g, _ := newTestGate(t, NewMemoryStore(), DefaultLimits())
	ctx := context.Background()
	user := uuid.New()
	boom := errors.New("upstream down")

	called := 0
	err := g.Do(ctx, user, accounts.PlanFree, func(context.Context) error {
		called++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, called)

	st, err := g.Usage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestRefusalDoesNotCallOrPersist(t *testing.T) {
	g, _ := newTestGate(t, NewMemoryStore(), DefaultLimits())
	ctx := context.Background()
	user := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, g.CheckAndConsume(ctx, user, accounts.PlanFree))
	}
	before, err := g.Usage(ctx, user)
	require.NoError(t, err)

	err = g.Do(ctx, user, accounts.PlanFree, func(context.Context) error {
		t.Fatal("collaborator must not be called")
		return nil
	})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	after, err := g.Usage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context, uuid.UUID) (State, error) { return State{}, f.err }
func (f failingStore) Save(context.Context, uuid.UUID, State) error   { return f.err }

func TestStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("store down")
	g, _ := newTestGate(t, failingStore{err: boom}, DefaultLimits())
	assert.ErrorIs(t, g.CheckAndConsume(context.Background(), uuid.New(), accounts.PlanFree), boom)
}

func TestNewGateFillsDefaults(t *testing.T) {
	g := NewGate(NewMemoryStore(), Limits{}, nil)
	assert.Equal(t, DefaultLimits(), g.limits)
}
