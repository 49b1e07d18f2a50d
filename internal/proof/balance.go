package proof

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/commitmentparties/engine/internal/model"
)

// ChainQuerier is the read-only slice of the Solana client the on-chain
// adapters need.
type ChainQuerier interface {
	TokenBalance(ctx context.Context, wallet, mint string) (uint64, error)
	TransactionCount(ctx context.Context, wallet string, from, to time.Time) (int, error)
}

// BalanceAdapter verifies hodl goals with a point-in-time balance read. A
// reading at or above the threshold passes the day; a reading below fails it
// immediately, since a dip proves the balance was not held throughout.
type BalanceAdapter struct {
	chain ChainQuerier
}

func NewBalanceAdapter(chain ChainQuerier) *BalanceAdapter {
	return &BalanceAdapter{chain: chain}
}

func (a *BalanceAdapter) Kind() string { return "hodl_token" }

func (a *BalanceAdapter) Verify(ctx context.Context, pool *model.Pool, participant *model.Participant, day int, now time.Time, checked CheckedSet) (Result, error) {
	goal := pool.GoalSpec.Hodl
	if goal == nil {
		return Result{}, fmt.Errorf("%w: pool %d has no hodl goal", ErrConfig, pool.PoolID)
	}

	balance, err := a.chain.TokenBalance(ctx, participant.WalletAddress, goal.TokenMint)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	result := Result{
		Details: map[string]string{
			"balance":     strconv.FormatUint(balance, 10),
			"min_balance": strconv.FormatUint(goal.MinBalance, 10),
		},
	}
	if balance >= goal.MinBalance {
		result.Verdict = VerdictPass
	} else {
		result.Verdict = VerdictFail
	}
	return result, nil
}
