package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/commitmentparties/engine/internal/chain"
	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/proof"
	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/service"
	"github.com/commitmentparties/engine/internal/window"
)

// Verifier is the shared tick body of the verification loops. Each loop owns
// one Verifier configured with the goal kinds of its challenge family.
//
// A non-zero grace window changes two things for lifestyle families: the
// previous day is re-checked while its grace is open (so a proof submitted
// just before the deadline can still widen a recorded fail to a pass), and a
// participant is only failed for a day once that day's grace has closed.
// On-chain families run with zero grace; their fail verdicts take effect
// immediately.
type Verifier struct {
	pools        repository.PoolRepository
	participants repository.ParticipantRepository
	ledger       *service.LedgerService
	chain        service.ChainSubmitter
	adapters     map[model.GoalKind]proof.Adapter
	kinds        []model.GoalKind
	grace        time.Duration
	callTimeout  time.Duration
	log          *slog.Logger
}

func NewVerifier(
	pools repository.PoolRepository,
	participants repository.ParticipantRepository,
	ledger *service.LedgerService,
	submitter service.ChainSubmitter,
	adapters map[model.GoalKind]proof.Adapter,
	kinds []model.GoalKind,
	grace time.Duration,
	callTimeout time.Duration,
	log *slog.Logger,
) *Verifier {
	return &Verifier{
		pools:        pools,
		participants: participants,
		ledger:       ledger,
		chain:        submitter,
		adapters:     adapters,
		kinds:        kinds,
		grace:        grace,
		callTimeout:  callTimeout,
		log:          log,
	}
}

// Tick checks every active pool of the verifier's goal kinds once.
func (v *Verifier) Tick(ctx context.Context, now time.Time) {
	for _, kind := range v.kinds {
		pools, err := v.pools.ByStatusAndKind(model.PoolStatusActive, kind)
		if err != nil {
			v.log.Error("verifier: load pools", "kind", kind, "err", err)
			continue
		}
		for _, pool := range pools {
			v.checkPool(ctx, pool, now)
		}
	}
}

func (v *Verifier) checkPool(ctx context.Context, pool *model.Pool, now time.Time) {
	if now.Unix() < pool.StartTimestamp {
		return
	}

	adapter, ok := v.adapters[pool.GoalKind]
	if !ok {
		v.log.Warn("verifier: no adapter for goal kind, skipping pool",
			"pool_id", pool.PoolID, "kind", pool.GoalKind)
		return
	}

	days := v.daysToCheck(pool, now)
	if len(days) == 0 {
		return
	}

	participants, err := v.participants.ByPoolAndStatus(pool.PoolID, model.ParticipantStatusActive)
	if err != nil {
		v.log.Error("verifier: load participants", "pool_id", pool.PoolID, "err", err)
		return
	}

	for _, participant := range participants {
		v.checkParticipant(ctx, adapter, pool, participant, days, now)
	}
}

// daysToCheck is the current day (clamped to the pool's duration) plus, for
// grace families, the previous day. The previous day stays in the list after
// its grace closes so an open fail from the grace window still gets
// finalized.
func (v *Verifier) daysToCheck(pool *model.Pool, now time.Time) []int {
	current, ok := window.CurrentDay(pool.StartTimestamp, now)
	if !ok {
		return nil
	}

	var days []int
	if prev := min(current, pool.DurationDays+1) - 1; prev >= 1 && v.grace > 0 {
		days = append(days, prev)
	}
	if current <= pool.DurationDays {
		days = append(days, current)
	}
	return days
}

func (v *Verifier) checkParticipant(ctx context.Context, adapter proof.Adapter, pool *model.Pool, participant *model.Participant, days []int, now time.Time) {
	for _, day := range days {
		recorded, err := v.ledger.Verdict(pool.PoolID, participant.WalletAddress, day)
		if err != nil {
			v.log.Error("verifier: load verdict",
				"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day, "err", err)
			return
		}
		if recorded != nil && recorded.Passed {
			continue
		}

		// A recorded fail whose grace window has closed is final: the
		// participant drops out of the pool here.
		if recorded != nil && !recorded.Passed &&
			!window.InGrace(pool.StartTimestamp, day, now, v.grace) {
			v.failParticipant(pool, participant, day)
			return
		}

		v.checkDay(ctx, adapter, pool, participant, day, now)
	}
}

func (v *Verifier) checkDay(ctx context.Context, adapter proof.Adapter, pool *model.Pool, participant *model.Participant, day int, now time.Time) {
	checked, err := v.ledger.Checked(pool.PoolID, participant.WalletAddress)
	if err != nil {
		v.log.Error("verifier: load checked proof ids",
			"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "err", err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, v.callTimeout)
	result, err := adapter.Verify(callCtx, pool, participant, day, now, checked)
	cancel()

	if err != nil {
		switch {
		case errors.Is(err, proof.ErrTransient):
			v.log.Warn("verifier: transient proof failure, retrying next tick",
				"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day, "err", err)
		case errors.Is(err, proof.ErrConfig):
			v.log.Warn("verifier: configuration problem, skipping participant",
				"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "err", err)
		case errors.Is(err, proof.ErrClassifier):
			v.log.Error("verifier: classifier error",
				"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day, "err", err)
		default:
			v.log.Error("verifier: proof check failed",
				"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day, "err", err)
		}
		return
	}

	if !result.Verdict.Definitive() {
		return
	}

	changed, err := v.ledger.Record(pool.PoolID, participant.WalletAddress, day, adapter.Kind(), result)
	if err != nil {
		v.log.Error("verifier: record verdict",
			"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day, "err", err)
		return
	}
	if !changed {
		return
	}

	passed := result.Verdict == proof.VerdictPass
	v.log.Info("verdict recorded",
		"pool_id", pool.PoolID,
		"wallet", participant.WalletAddress,
		"day", day,
		"passed", passed,
	)

	v.submitVerdict(ctx, pool, participant, day, passed)

	// A fail is final immediately for zero-grace families, and for grace
	// families once the day's grace window has already closed.
	if !passed && (v.grace == 0 ||
		(window.Ended(pool.StartTimestamp, day, now) &&
			!window.InGrace(pool.StartTimestamp, day, now, v.grace))) {
		v.failParticipant(pool, participant, day)
	}
}

func (v *Verifier) submitVerdict(ctx context.Context, pool *model.Pool, participant *model.Participant, day int, passed bool) {
	callCtx, cancel := context.WithTimeout(ctx, v.callTimeout)
	defer cancel()

	sig, err := v.chain.SubmitVerify(callCtx, pool.PoolID, participant.WalletAddress, day, passed)
	if errors.Is(err, chain.ErrPoolNotActive) {
		// Expected while nobody has joined on-chain yet.
		return
	}
	if err != nil {
		v.log.Warn("verifier: on-chain submission failed, verdict kept locally",
			"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day, "err", err)
		return
	}
	v.log.Info("verdict submitted on-chain",
		"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day, "sig", sig)
}

func (v *Verifier) failParticipant(pool *model.Pool, participant *model.Participant, day int) {
	err := v.participants.TransitionStatus(pool.PoolID, participant.WalletAddress,
		model.ParticipantStatusActive, model.ParticipantStatusFailed)
	if errors.Is(err, repository.ErrStaleUpdate) {
		return
	}
	if err != nil {
		v.log.Error("verifier: fail participant",
			"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "err", err)
		return
	}
	v.log.Info("participant failed challenge",
		"pool_id", pool.PoolID, "wallet", participant.WalletAddress, "day", day)
}
