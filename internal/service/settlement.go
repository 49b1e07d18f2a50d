package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/commitmentparties/engine/internal/chain"
	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
)

// Distribution is a pool's computed settlement: each winner's payout and
// what is left for charity, all in lamports.
type Distribution struct {
	WinnerPayout  uint64 // stake + bonus, per winner
	WinnerBonus   uint64
	CharityAmount uint64
}

// SettlementService settles active pools whose end instant has passed. The
// whole flow is guarded by the pool's status and by unique payout keys, so a
// retry after a partial failure never double-pays.
type SettlementService struct {
	pools        repository.PoolRepository
	participants repository.ParticipantRepository
	payouts      repository.PayoutRepository
	users        repository.UserRepository
	ledger       *LedgerService
	chain        ChainSubmitter
	log          *slog.Logger
}

func NewSettlementService(
	pools repository.PoolRepository,
	participants repository.ParticipantRepository,
	payouts repository.PayoutRepository,
	users repository.UserRepository,
	ledger *LedgerService,
	chain ChainSubmitter,
	log *slog.Logger,
) *SettlementService {
	return &SettlementService{
		pools:        pools,
		participants: participants,
		payouts:      payouts,
		users:        users,
		ledger:       ledger,
		chain:        chain,
		log:          log,
	}
}

// Tick settles every active pool whose end instant has passed.
func (s *SettlementService) Tick(ctx context.Context, now time.Time) {
	active, err := s.pools.ByStatus(model.PoolStatusActive)
	if err != nil {
		s.log.Error("settlement: load active pools", "err", err)
		return
	}

	for _, pool := range active {
		if now.Unix() < pool.EndTimestamp {
			continue
		}
		if err := s.Settle(ctx, pool); err != nil {
			s.log.Error("settlement failed, will retry next tick", "pool_id", pool.PoolID, "err", err)
		}
	}
}

// Settle finalizes one pool: promotes participants who passed every day,
// computes the distribution, submits the single on-chain distribute
// instruction, records payouts and per-user outcomes, and marks the pool
// settled.
func (s *SettlementService) Settle(ctx context.Context, pool *model.Pool) error {
	if pool.Status != model.PoolStatusActive {
		return nil
	}

	if err := s.promoteWinners(pool); err != nil {
		return err
	}

	winners, err := s.participants.ByPoolAndStatus(pool.PoolID, model.ParticipantStatusSuccess)
	if err != nil {
		return err
	}
	losers, err := s.participants.ByPoolAndStatus(pool.PoolID, model.ParticipantStatusFailed)
	if err != nil {
		return err
	}

	dist, err := Distribute(pool, len(winners), len(losers))
	if err != nil {
		return err
	}

	winnerWallets := make([]string, len(winners))
	for i, w := range winners {
		winnerWallets[i] = w.WalletAddress
	}

	sig, err := s.chain.SubmitDistribute(ctx, pool, winnerWallets)
	if errors.Is(err, chain.ErrPoolNotActive) {
		// Already distributed on-chain; finish the bookkeeping.
		s.log.Info("distribute skipped, pool already settled on-chain", "pool_id", pool.PoolID)
		sig = ""
	} else if err != nil {
		return fmt.Errorf("submit distribute: %w", err)
	}

	if err := s.recordPayouts(pool, winners, dist, sig); err != nil {
		return err
	}
	if err := s.recordOutcomes(pool, winners, losers, dist); err != nil {
		return err
	}

	if sig != "" {
		if err := s.pools.SetSettlementSignature(pool.PoolID, sig); err != nil {
			return err
		}
	}

	err = s.pools.TransitionStatus(pool.PoolID, model.PoolStatusActive, model.PoolStatusSettled)
	if errors.Is(err, repository.ErrStaleUpdate) {
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("pool settled",
		"pool_id", pool.PoolID,
		"winners", len(winners),
		"losers", len(losers),
		"winner_payout", dist.WinnerPayout,
		"charity", dist.CharityAmount,
		"sig", sig,
	)
	return nil
}

// promoteWinners moves every still-active participant who passed all
// required days to success. Participants with missing days stay as they are:
// ambiguous, and never paid.
func (s *SettlementService) promoteWinners(pool *model.Pool) error {
	active, err := s.participants.ByPoolAndStatus(pool.PoolID, model.ParticipantStatusActive)
	if err != nil {
		return err
	}

	for _, p := range active {
		passed, err := s.ledger.CountPassed(pool.PoolID, p.WalletAddress)
		if err != nil {
			return err
		}
		if passed < pool.DurationDays {
			continue
		}
		err = s.participants.TransitionStatus(pool.PoolID, p.WalletAddress,
			model.ParticipantStatusActive, model.ParticipantStatusSuccess)
		if err != nil && !errors.Is(err, repository.ErrStaleUpdate) {
			return err
		}
	}
	return nil
}

func (s *SettlementService) recordPayouts(pool *model.Pool, winners []*model.Participant, dist Distribution, sig string) error {
	for _, w := range winners {
		payout := &model.Payout{
			ID:                  uuid.New().String(),
			PoolID:              pool.PoolID,
			RecipientWallet:     w.WalletAddress,
			Amount:              dist.WinnerPayout,
			Kind:                model.PayoutKindWinner,
			SettlementSignature: sig,
			CreatedAt:           time.Now(),
		}
		err := s.payouts.Create(payout)
		if err != nil && !errors.Is(err, repository.ErrPayoutExists) {
			return fmt.Errorf("record payout for %s: %w", w.WalletAddress, err)
		}
	}

	if dist.CharityAmount > 0 {
		payout := &model.Payout{
			ID:                  uuid.New().String(),
			PoolID:              pool.PoolID,
			RecipientWallet:     pool.CharityAddress,
			Amount:              dist.CharityAmount,
			Kind:                model.PayoutKindCharity,
			SettlementSignature: sig,
			CreatedAt:           time.Now(),
		}
		err := s.payouts.Create(payout)
		if err != nil && !errors.Is(err, repository.ErrPayoutExists) {
			return fmt.Errorf("record charity payout: %w", err)
		}
	}
	return nil
}

func (s *SettlementService) recordOutcomes(pool *model.Pool, winners, losers []*model.Participant, dist Distribution) error {
	for _, w := range winners {
		if err := s.users.RecordOutcome(w.WalletAddress, true, dist.WinnerPayout); err != nil {
			s.log.Warn("record winner outcome failed", "wallet", w.WalletAddress, "err", err)
		}
	}
	for _, l := range losers {
		if err := s.users.RecordOutcome(l.WalletAddress, false, 0); err != nil {
			s.log.Warn("record loser outcome failed", "wallet", l.WalletAddress, "err", err)
		}
	}
	return nil
}

// Distribute computes the payout arithmetic for a pool. The loser-stake pool
// is losers x stake; how it splits depends on the distribution mode. Zero
// winners sends the pool's full staked total to charity.
func Distribute(pool *model.Pool, winners, losers int) (Distribution, error) {
	if winners == 0 {
		return Distribution{CharityAmount: pool.TotalStaked}, nil
	}

	loserPool := uint64(losers) * pool.StakeAmount
	w := uint64(winners)

	var bonus, charity uint64
	switch pool.DistributionMode {
	case model.DistributionCompetitive:
		bonus = loserPool / w
		charity = loserPool - bonus*w // integer dust
	case model.DistributionSplit:
		winnersShare := loserPool * uint64(pool.WinnerPercent) / 100
		bonus = winnersShare / w
		charity = loserPool - bonus*w
	case model.DistributionCharity:
		bonus = 0
		charity = loserPool
	default:
		return Distribution{}, fmt.Errorf("unknown distribution mode %q", pool.DistributionMode)
	}

	return Distribution{
		WinnerPayout:  pool.StakeAmount + bonus,
		WinnerBonus:   bonus,
		CharityAmount: charity,
	}, nil
}
