package proof

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitmentparties/engine/internal/model"
)

type fakeChain struct {
	balance uint64
	txCount int
	err     error
}

func (f *fakeChain) TokenBalance(ctx context.Context, wallet, mint string) (uint64, error) {
	return f.balance, f.err
}

func (f *fakeChain) TransactionCount(ctx context.Context, wallet string, from, to time.Time) (int, error) {
	return f.txCount, f.err
}

func hodlPool() *model.Pool {
	return &model.Pool{
		PoolID:         3,
		StartTimestamp: testStart,
		DurationDays:   7,
		GoalKind:       model.GoalHodlToken,
		GoalSpec: model.GoalSpec{
			Kind: model.GoalHodlToken,
			Hodl: &model.HodlGoal{TokenMint: "mint", MinBalance: 1000},
		},
	}
}

func tradePool(minTrades int) *model.Pool {
	return &model.Pool{
		PoolID:         4,
		StartTimestamp: testStart,
		DurationDays:   7,
		GoalKind:       model.GoalDailyTrade,
		GoalSpec: model.GoalSpec{
			Kind:  model.GoalDailyTrade,
			Trade: &model.TradeGoal{TokenMint: "mint", MinTradesPerDay: minTrades},
		},
	}
}

func TestBalanceAdapter(t *testing.T) {
	adapter := NewBalanceAdapter(&fakeChain{balance: 1500})
	result, err := adapter.Verify(context.Background(), hodlPool(), testParticipant(), 1, inDay(1, time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, result.Verdict)

	// A dip below the threshold is an immediate fail, even mid-day.
	adapter = NewBalanceAdapter(&fakeChain{balance: 999})
	result, err = adapter.Verify(context.Background(), hodlPool(), testParticipant(), 1, inDay(1, time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, result.Verdict)
}

func TestBalanceAdapter_TransientError(t *testing.T) {
	adapter := NewBalanceAdapter(&fakeChain{err: errors.New("rpc down")})
	_, err := adapter.Verify(context.Background(), hodlPool(), testParticipant(), 1, inDay(1, time.Hour), nil)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestActivityAdapter(t *testing.T) {
	adapter := NewActivityAdapter(&fakeChain{txCount: 3})
	result, err := adapter.Verify(context.Background(), tradePool(2), testParticipant(), 1, inDay(1, time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, result.Verdict)

	// Short of the target mid-day: still pending.
	adapter = NewActivityAdapter(&fakeChain{txCount: 1})
	result, err = adapter.Verify(context.Background(), tradePool(2), testParticipant(), 1, inDay(1, time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictPending, result.Verdict)

	// Short of the target after the day closed: fail.
	result, err = adapter.Verify(context.Background(), tradePool(2), testParticipant(), 1, inDay(2, time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, result.Verdict)
}

func TestAdapters_WrongGoalKind(t *testing.T) {
	_, err := NewBalanceAdapter(&fakeChain{}).Verify(context.Background(), tradePool(1), testParticipant(), 1, inDay(1, time.Hour), nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewActivityAdapter(&fakeChain{}).Verify(context.Background(), hodlPool(), testParticipant(), 1, inDay(1, time.Hour), nil)
	assert.ErrorIs(t, err, ErrConfig)
}
