package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
)

// ChainSubmitter is the slice of the Solana client the services need for
// state-changing submissions.
type ChainSubmitter interface {
	SubmitVerify(ctx context.Context, poolID int64, wallet string, day int, passed bool) (string, error)
	SubmitDistribute(ctx context.Context, pool *model.Pool, winners []string) (string, error)
	Refund(ctx context.Context, recipient string, lamports uint64) (string, error)
}

// LifecycleService drives pending pools to active or expired. Every step is
// a conditional update, so re-running a tick over an already-transitioned
// pool is a no-op.
type LifecycleService struct {
	pools             repository.PoolRepository
	participants      repository.ParticipantRepository
	chain             ChainSubmitter
	refundMaxAttempts int
	log               *slog.Logger
}

func NewLifecycleService(
	pools repository.PoolRepository,
	participants repository.ParticipantRepository,
	chain ChainSubmitter,
	refundMaxAttempts int,
	log *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		pools:             pools,
		participants:      participants,
		chain:             chain,
		refundMaxAttempts: refundMaxAttempts,
		log:               log,
	}
}

// Tick processes every pending pool once against the given instant.
func (s *LifecycleService) Tick(ctx context.Context, now time.Time) {
	pending, err := s.pools.ByStatus(model.PoolStatusPending)
	if err != nil {
		s.log.Error("lifecycle: load pending pools", "err", err)
		return
	}

	for _, pool := range pending {
		if err := s.step(ctx, pool, now); err != nil {
			s.log.Error("lifecycle: pool step failed", "pool_id", pool.PoolID, "err", err)
		}
	}
}

func (s *LifecycleService) step(ctx context.Context, pool *model.Pool, now time.Time) error {
	if pool.ImmediateStart() {
		return s.activate(pool, now.Unix())
	}

	deadline := pool.RecruitmentDeadline()
	if now.Unix() < deadline {
		return nil
	}

	if !pool.RequireMinParticipants || pool.ParticipantCount >= pool.MinParticipants {
		return s.activate(pool, deadline)
	}
	return s.expire(ctx, pool)
}

// activate starts the pool and converts recruitment-phase forfeits to
// failed, so a mid-game forfeit counts against the participant at settlement
// while a pre-start one never enters the game at all.
func (s *LifecycleService) activate(pool *model.Pool, start int64) error {
	end := start + int64(pool.DurationDays)*86400

	err := s.pools.Activate(pool.PoolID, start, end)
	if errors.Is(err, repository.ErrStaleUpdate) {
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("pool activated",
		"pool_id", pool.PoolID,
		"participants", pool.ParticipantCount,
		"duration_days", pool.DurationDays,
	)

	forfeited, err := s.participants.ByPoolAndStatus(pool.PoolID, model.ParticipantStatusForfeit)
	if err != nil {
		return err
	}
	for _, p := range forfeited {
		err := s.participants.TransitionStatus(pool.PoolID, p.WalletAddress,
			model.ParticipantStatusForfeit, model.ParticipantStatusFailed)
		if err != nil && !errors.Is(err, repository.ErrStaleUpdate) {
			return err
		}
	}
	return nil
}

// expire refunds every participant, then marks the pool expired. The pool
// stays pending while refunds are outstanding; after refundMaxAttempts
// failed rounds it is expired anyway and flagged for manual follow-up.
func (s *LifecycleService) expire(ctx context.Context, pool *model.Pool) error {
	participants, err := s.participants.ByPool(pool.PoolID)
	if err != nil {
		return err
	}

	outstanding := 0
	for _, p := range participants {
		if p.Refunded {
			continue
		}

		sig, err := s.chain.Refund(ctx, p.WalletAddress, p.StakeAmount)
		if err != nil {
			s.log.Warn("refund failed, will retry next tick",
				"pool_id", pool.PoolID, "wallet", p.WalletAddress, "err", err)
			outstanding++
			continue
		}

		err = s.participants.MarkRefunded(pool.PoolID, p.WalletAddress, sig)
		if err != nil && !errors.Is(err, repository.ErrStaleUpdate) {
			return err
		}
		s.log.Info("participant refunded",
			"pool_id", pool.PoolID, "wallet", p.WalletAddress, "lamports", p.StakeAmount, "sig", sig)
	}

	if outstanding > 0 {
		if err := s.pools.IncrementRefundAttempts(pool.PoolID); err != nil {
			return err
		}
		if pool.RefundAttempts+1 < s.refundMaxAttempts {
			return nil
		}
		s.log.Error("refunds abandoned after max attempts, pool needs manual intervention",
			"pool_id", pool.PoolID, "outstanding", outstanding, "attempts", pool.RefundAttempts+1)
	}

	err = s.pools.TransitionStatus(pool.PoolID, model.PoolStatusPending, model.PoolStatusExpired)
	if errors.Is(err, repository.ErrStaleUpdate) {
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("pool expired",
		"pool_id", pool.PoolID,
		"participants", pool.ParticipantCount,
		"min_participants", pool.MinParticipants,
	)
	return nil
}
