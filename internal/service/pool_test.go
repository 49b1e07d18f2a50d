package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/proof"
)

func testWallet() string {
	return solana.NewWallet().PublicKey().String()
}

func joinablePool(id int64, public bool) *model.Pool {
	return &model.Pool{
		PoolID:        id,
		CreatorWallet: testWallet(),
		Name:          "no doomscrolling",
		GoalKind:      model.GoalScreenTime,
		GoalSpec: model.GoalSpec{
			Kind:       model.GoalScreenTime,
			ScreenTime: &model.ScreenTimeGoal{MaxHours: 4},
		},
		StakeAmount:     lamportsPerSOL,
		DurationDays:    7,
		MaxParticipants: 2,
		CharityAddress:  testWallet(),
		Status:          model.PoolStatusPending,
		IsPublic:        public,
	}
}

func newPoolFixture(pool *model.Pool) (*PoolService, *memPools, *memParticipants, *memInvites) {
	pools := newMemPools()
	if pool != nil {
		pools.pools[pool.PoolID] = pool
	}
	parts := newMemParticipants()
	invites := newMemInvites()
	users := newMemUsers()
	ledger := NewLedgerService(newMemVerifications(), parts)
	svc := NewPoolService(pools, parts, invites, users, ledger,
		map[model.GoalKind]proof.Adapter{}, &fakeSubmitter{}, slog.Default())
	return svc, pools, parts, invites
}

func TestRegisterValidatesGoalSpec(t *testing.T) {
	svc, pools, _, _ := newPoolFixture(nil)

	pool := joinablePool(1, true)
	pool.GoalKind = "" // Register derives the kind from the goal union
	require.NoError(t, svc.Register(pool))
	assert.Equal(t, model.GoalScreenTime, pool.GoalKind)
	assert.Equal(t, model.PoolStatusPending, pool.Status)

	stored, err := pools.ByID(1)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusPending, stored.Status)

	bad := joinablePool(2, true)
	bad.GoalSpec.ScreenTime = nil
	assert.ErrorIs(t, svc.Register(bad), model.ErrInvalidGoalSpec)

	badWallet := joinablePool(3, true)
	badWallet.CreatorWallet = "not-a-pubkey"
	assert.Error(t, svc.Register(badWallet))

	badSplit := joinablePool(4, true)
	badSplit.DistributionMode = model.DistributionSplit
	badSplit.WinnerPercent = 120
	assert.Error(t, svc.Register(badSplit))
}

func TestJoinPublicPool(t *testing.T) {
	pool := joinablePool(1, true)
	svc, pools, parts, _ := newPoolFixture(pool)
	wallet := testWallet()

	p, err := svc.Join(1, wallet, "")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusActive, p.Status)
	assert.Equal(t, pool.StakeAmount, p.StakeAmount)

	stored, err := pools.ByID(1)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ParticipantCount)
	assert.Equal(t, pool.StakeAmount, stored.TotalStaked)

	_, err = parts.ByKey(1, wallet)
	require.NoError(t, err)

	_, err = svc.Join(1, wallet, "")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestJoinFullPool(t *testing.T) {
	pool := joinablePool(1, true)
	svc, _, _, _ := newPoolFixture(pool)

	_, err := svc.Join(1, testWallet(), "")
	require.NoError(t, err)
	_, err = svc.Join(1, testWallet(), "")
	require.NoError(t, err)

	_, err = svc.Join(1, testWallet(), "")
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestJoinSettledPool(t *testing.T) {
	pool := joinablePool(1, true)
	pool.Status = model.PoolStatusSettled
	svc, _, _, _ := newPoolFixture(pool)

	_, err := svc.Join(1, testWallet(), "")
	assert.ErrorIs(t, err, ErrPoolNotOpen)
}

func TestJoinPrivatePoolConsumesInvite(t *testing.T) {
	pool := joinablePool(1, false)
	svc, _, _, _ := newPoolFixture(pool)

	_, err := svc.Join(1, testWallet(), "")
	assert.ErrorIs(t, err, ErrInviteRequired)

	invite, err := svc.CreateInvite(1, pool.CreatorWallet)
	require.NoError(t, err)

	_, err = svc.CreateInvite(1, testWallet())
	assert.Error(t, err, "only the creator mints invites")

	_, err = svc.Join(1, testWallet(), invite.Code)
	require.NoError(t, err)

	// The code is single-use.
	_, err = svc.Join(1, testWallet(), invite.Code)
	assert.Error(t, err)
}

func TestForfeit(t *testing.T) {
	pool := joinablePool(1, true)
	svc, _, parts, _ := newPoolFixture(pool)
	wallet := testWallet()

	_, err := svc.Join(1, wallet, "")
	require.NoError(t, err)

	require.NoError(t, svc.Forfeit(1, wallet))
	p, err := parts.ByKey(1, wallet)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusForfeit, p.Status)

	assert.ErrorIs(t, svc.Forfeit(1, wallet), ErrCannotForfeit)
	assert.ErrorIs(t, svc.Forfeit(1, testWallet()), ErrCannotForfeit)
}

func TestCheckNowRecordsAndSubmits(t *testing.T) {
	pool := joinablePool(1, true)
	pool.GoalKind = model.GoalGitHubCommits
	pool.Status = model.PoolStatusActive
	pool.StartTimestamp = time.Now().Add(-2 * time.Hour).Unix()
	svc, _, _, _ := newPoolFixture(pool)
	wallet := testWallet()

	participant := activeParticipant(1, wallet)
	require.NoError(t, svc.participants.Create(participant))

	_, err := svc.CheckNow(context.Background(), 1, wallet, time.Now())
	assert.ErrorIs(t, err, ErrNoAdapterForGoal)

	svc.adapters[model.GoalGitHubCommits] = passAdapter{}
	result, err := svc.CheckNow(context.Background(), 1, wallet, time.Now())
	require.NoError(t, err)
	assert.Equal(t, proof.VerdictPass, result.Verdict)

	submitter := svc.chain.(*fakeSubmitter)
	require.Len(t, submitter.verifies, 1)

	// Re-running does not resubmit an unchanged verdict.
	_, err = svc.CheckNow(context.Background(), 1, wallet, time.Now())
	require.NoError(t, err)
	assert.Len(t, submitter.verifies, 1)
}

type passAdapter struct{}

func (passAdapter) Verify(ctx context.Context, pool *model.Pool, participant *model.Participant, day int, now time.Time, checked proof.CheckedSet) (proof.Result, error) {
	return proof.Result{Verdict: proof.VerdictPass}, nil
}

func (passAdapter) Kind() string { return "pass" }
