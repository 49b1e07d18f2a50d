package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitmentparties/engine/internal/model"
)

func recruitingPool(deadline time.Time) *model.Pool {
	return &model.Pool{
		PoolID:                 3,
		Name:                   "morning runs",
		GoalKind:               model.GoalScreenTime,
		StakeAmount:            lamportsPerSOL,
		DurationDays:           7,
		MinParticipants:        3,
		MaxParticipants:        10,
		RequireMinParticipants: true,
		RecruitmentHours:       24,
		ScheduledStartTime:     sql.NullInt64{Int64: deadline.Unix(), Valid: true},
		Status:                 model.PoolStatusPending,
	}
}

func newLifecycleFixture(pool *model.Pool, participants ...*model.Participant) (*LifecycleService, *memPools, *memParticipants, *fakeSubmitter) {
	pools := newMemPools(pool)
	parts := newMemParticipants(participants...)
	submitter := &fakeSubmitter{}
	svc := NewLifecycleService(pools, parts, submitter, 3, slog.Default())
	return svc, pools, parts, submitter
}

func TestTickActivatesImmediateStartPool(t *testing.T) {
	pool := &model.Pool{
		PoolID:       1,
		GoalKind:     model.GoalHodlToken,
		StakeAmount:  lamportsPerSOL,
		DurationDays: 5,
		Status:       model.PoolStatusPending,
	}
	svc, pools, _, _ := newLifecycleFixture(pool)

	now := time.Now()
	svc.Tick(context.Background(), now)

	p, err := pools.ByID(pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusActive, p.Status)
	assert.Equal(t, now.Unix(), p.StartTimestamp)
	assert.Equal(t, now.Unix()+5*86400, p.EndTimestamp)
}

func TestTickWaitsForRecruitmentDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	pool := recruitingPool(deadline)
	svc, pools, _, _ := newLifecycleFixture(pool)

	svc.Tick(context.Background(), time.Now())

	p, err := pools.ByID(pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusPending, p.Status)
}

func TestTickActivatesAtDeadlineWithQuorum(t *testing.T) {
	deadline := time.Now().Add(-time.Minute)
	pool := recruitingPool(deadline)
	pool.ParticipantCount = 3
	svc, pools, _, _ := newLifecycleFixture(pool)

	svc.Tick(context.Background(), time.Now())

	p, err := pools.ByID(pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusActive, p.Status)
	// Challenge days anchor at the deadline, not at whenever the tick ran.
	assert.Equal(t, deadline.Unix(), p.StartTimestamp)
}

func TestActivateConvertsRecruitmentForfeits(t *testing.T) {
	deadline := time.Now().Add(-time.Minute)
	pool := recruitingPool(deadline)
	pool.RequireMinParticipants = false
	quitter := activeParticipant(pool.PoolID, "Quitter")
	quitter.Status = model.ParticipantStatusForfeit
	stayer := activeParticipant(pool.PoolID, "Stayer")

	svc, _, parts, _ := newLifecycleFixture(pool, quitter, stayer)
	svc.Tick(context.Background(), time.Now())

	p, err := parts.ByKey(pool.PoolID, "Quitter")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusFailed, p.Status)
	p, err = parts.ByKey(pool.PoolID, "Stayer")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusActive, p.Status)
}

func TestExpireRefundsEveryParticipant(t *testing.T) {
	deadline := time.Now().Add(-time.Minute)
	pool := recruitingPool(deadline)
	pool.ParticipantCount = 2 // below the quorum of 3
	a := activeParticipant(pool.PoolID, "WalletA")
	b := activeParticipant(pool.PoolID, "WalletB")

	svc, pools, parts, submitter := newLifecycleFixture(pool, a, b)
	svc.Tick(context.Background(), time.Now())

	p, err := pools.ByID(pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusExpired, p.Status)
	assert.Equal(t, []string{"WalletA", "WalletB"}, submitter.refunds)

	for _, wallet := range []string{"WalletA", "WalletB"} {
		part, err := parts.ByKey(pool.PoolID, wallet)
		require.NoError(t, err)
		assert.True(t, part.Refunded)
		assert.Equal(t, "refund-sig", part.RefundSignature.String)
	}
}

func TestExpireRetriesFailedRefunds(t *testing.T) {
	deadline := time.Now().Add(-time.Minute)
	pool := recruitingPool(deadline)
	pool.ParticipantCount = 2
	a := activeParticipant(pool.PoolID, "WalletA")
	b := activeParticipant(pool.PoolID, "WalletB")

	svc, pools, parts, submitter := newLifecycleFixture(pool, a, b)
	submitter.refundErr = map[string]error{"WalletB": errors.New("rpc timeout")}

	svc.Tick(context.Background(), time.Now())

	// Pool stays pending while a refund is outstanding.
	p, err := pools.ByID(pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusPending, p.Status)
	assert.Equal(t, 1, p.RefundAttempts)

	// RPC recovers; the next tick refunds only the outstanding wallet.
	submitter.refundErr = nil
	svc.Tick(context.Background(), time.Now())

	p, err = pools.ByID(pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusExpired, p.Status)
	assert.Equal(t, []string{"WalletA", "WalletB"}, submitter.refunds)

	part, err := parts.ByKey(pool.PoolID, "WalletB")
	require.NoError(t, err)
	assert.True(t, part.Refunded)
}

func TestExpireAbandonsRefundsAfterMaxAttempts(t *testing.T) {
	deadline := time.Now().Add(-time.Minute)
	pool := recruitingPool(deadline)
	pool.ParticipantCount = 1
	a := activeParticipant(pool.PoolID, "WalletA")

	svc, pools, _, submitter := newLifecycleFixture(pool, a)
	submitter.refundErr = map[string]error{"WalletA": errors.New("rpc down")}

	for i := 0; i < 3; i++ {
		svc.Tick(context.Background(), time.Now())
	}

	// After refundMaxAttempts failed rounds the pool expires anyway.
	p, err := pools.ByID(pool.PoolID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusExpired, p.Status)
	assert.Equal(t, 3, p.RefundAttempts)
	assert.Empty(t, submitter.refunds)
}
