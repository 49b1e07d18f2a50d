package proof

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/window"
)

// ActivityAdapter verifies daily trade goals by counting the wallet's
// successful transactions inside the day window.
type ActivityAdapter struct {
	chain ChainQuerier
}

func NewActivityAdapter(chain ChainQuerier) *ActivityAdapter {
	return &ActivityAdapter{chain: chain}
}

func (a *ActivityAdapter) Kind() string { return "daily_trade" }

func (a *ActivityAdapter) Verify(ctx context.Context, pool *model.Pool, participant *model.Participant, day int, now time.Time, checked CheckedSet) (Result, error) {
	goal := pool.GoalSpec.Trade
	if goal == nil {
		return Result{}, fmt.Errorf("%w: pool %d has no trade goal", ErrConfig, pool.PoolID)
	}

	from, to := window.Day(pool.StartTimestamp, day)
	count, err := a.chain.TransactionCount(ctx, participant.WalletAddress, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	result := Result{
		Details: map[string]string{
			"transactions": strconv.Itoa(count),
			"required":     strconv.Itoa(goal.MinTradesPerDay),
		},
	}

	switch {
	case count >= goal.MinTradesPerDay:
		result.Verdict = VerdictPass
	case window.Ended(pool.StartTimestamp, day, now):
		result.Verdict = VerdictFail
	default:
		result.Verdict = VerdictPending
	}
	return result, nil
}
