package proof

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/window"
)

// ScreenTimeAdapter verifies screen-time goals against participant
// check-ins. The screenshot itself was already judged at submission time;
// here the only question is whether a successful check-in for the day was
// submitted before the day ended. The submission instant decides
// admissibility, so a check-in that arrived in time still passes when the
// monitor only looks during the grace window.
type ScreenTimeAdapter struct {
	checkins repository.CheckinRepository
}

func NewScreenTimeAdapter(checkins repository.CheckinRepository) *ScreenTimeAdapter {
	return &ScreenTimeAdapter{checkins: checkins}
}

func (a *ScreenTimeAdapter) Kind() string { return "screen_time" }

func (a *ScreenTimeAdapter) Verify(ctx context.Context, pool *model.Pool, participant *model.Participant, day int, now time.Time, checked CheckedSet) (Result, error) {
	if pool.GoalSpec.ScreenTime == nil {
		return Result{}, fmt.Errorf("%w: pool %d has no screen-time goal", ErrConfig, pool.PoolID)
	}

	checkins, err := a.checkins.Successful(pool.PoolID, participant.WalletAddress, day)
	if err != nil {
		return Result{}, fmt.Errorf("%w: load checkins: %v", ErrTransient, err)
	}

	_, dayEnd := window.Day(pool.StartTimestamp, day)

	var proofIDs []string
	admissible := 0
	for _, c := range checkins {
		proofIDs = append(proofIDs, c.ID)
		if c.SubmittedAt.Before(dayEnd) {
			admissible++
		}
	}

	result := Result{
		ProofIDs: proofIDs,
		Details: map[string]string{
			"admissible_checkins": strconv.Itoa(admissible),
		},
	}

	switch {
	case admissible > 0:
		result.Verdict = VerdictPass
	case window.Ended(pool.StartTimestamp, day, now):
		result.Verdict = VerdictFail
	default:
		result.Verdict = VerdictPending
	}
	return result, nil
}
