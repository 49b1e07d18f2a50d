package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/proof"
	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/validation"
	"github.com/commitmentparties/engine/internal/window"
)

var (
	ErrPoolFull         = errors.New("pool is at max participants")
	ErrAlreadyJoined    = errors.New("wallet already joined this pool")
	ErrInviteRequired   = errors.New("private pool requires an invite code")
	ErrCannotForfeit    = errors.New("participant cannot forfeit in current state")
	ErrNoAdapterForGoal = errors.New("no proof adapter for this goal kind")
)

// PoolService is the request-driven side of the engine: registering pools
// the creator put on-chain, recording joins, forfeits, invites, and
// on-demand verification.
type PoolService struct {
	pools        repository.PoolRepository
	participants repository.ParticipantRepository
	invites      repository.InviteRepository
	users        repository.UserRepository
	ledger       *LedgerService
	adapters     map[model.GoalKind]proof.Adapter
	chain        ChainSubmitter
	log          *slog.Logger
}

func NewPoolService(
	pools repository.PoolRepository,
	participants repository.ParticipantRepository,
	invites repository.InviteRepository,
	users repository.UserRepository,
	ledger *LedgerService,
	adapters map[model.GoalKind]proof.Adapter,
	chain ChainSubmitter,
	log *slog.Logger,
) *PoolService {
	return &PoolService{
		pools:        pools,
		participants: participants,
		invites:      invites,
		users:        users,
		ledger:       ledger,
		adapters:     adapters,
		chain:        chain,
		log:          log,
	}
}

// Register records a pool the creator has already created on-chain. The goal
// spec is validated once here; read sites trust it afterwards.
func (s *PoolService) Register(pool *model.Pool) error {
	if err := pool.GoalSpec.Validate(); err != nil {
		return err
	}
	pool.GoalKind = pool.GoalSpec.Kind

	if pool.MinParticipants > pool.MaxParticipants {
		return fmt.Errorf("min participants %d exceeds max %d", pool.MinParticipants, pool.MaxParticipants)
	}
	if err := validation.WalletAddress(pool.CreatorWallet); err != nil {
		return fmt.Errorf("creator wallet: %w", err)
	}
	if err := validation.WalletAddress(pool.CharityAddress); err != nil {
		return fmt.Errorf("charity address: %w", err)
	}
	if pool.DistributionMode == model.DistributionSplit &&
		(pool.WinnerPercent < 0 || pool.WinnerPercent > 100) {
		return fmt.Errorf("winner percent %d out of range", pool.WinnerPercent)
	}

	now := time.Now()
	pool.Status = model.PoolStatusPending
	pool.CreatedAt = now
	pool.UpdatedAt = now

	if err := s.pools.Create(pool); err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	s.log.Info("pool registered",
		"pool_id", pool.PoolID,
		"goal", pool.GoalKind,
		"stake", pool.StakeAmount,
		"duration_days", pool.DurationDays,
	)
	return nil
}

// Join records a participant who joined on-chain. Private pools additionally
// consume a single-use invite code.
func (s *PoolService) Join(poolID int64, wallet, inviteCode string) (*model.Participant, error) {
	pool, err := s.pools.ByID(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != model.PoolStatusPending && pool.Status != model.PoolStatusActive {
		return nil, ErrPoolNotOpen
	}
	if err := validation.WalletAddress(wallet); err != nil {
		return nil, err
	}

	if _, err := s.participants.ByKey(poolID, wallet); err == nil {
		return nil, ErrAlreadyJoined
	} else if !errors.Is(err, repository.ErrParticipantNotFound) {
		return nil, err
	}

	if !pool.IsPublic {
		if inviteCode == "" {
			return nil, ErrInviteRequired
		}
		invite, err := s.invites.ByCode(inviteCode)
		if err != nil {
			return nil, err
		}
		if invite.PoolID != poolID {
			return nil, repository.ErrInviteNotFound
		}
		if err := s.invites.MarkUsed(inviteCode, wallet); err != nil {
			return nil, err
		}
	}

	// Guarded by participant_count < max at the storage layer, so two
	// racing joins cannot overfill the pool.
	if err := s.pools.AddParticipant(poolID, pool.StakeAmount); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, ErrPoolFull
		}
		return nil, err
	}

	now := time.Now()
	participant := &model.Participant{
		PoolID:        poolID,
		WalletAddress: wallet,
		StakeAmount:   pool.StakeAmount,
		JoinTimestamp: now.Unix(),
		Status:        model.ParticipantStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.participants.Create(participant); err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}

	s.log.Info("participant joined", "pool_id", poolID, "wallet", wallet)
	return participant, nil
}

// Forfeit is a voluntary exit, allowed while the pool is pending or active.
// A forfeit before the pool starts just frees the slot; once the pool
// activates, forfeits convert to failed and count against the wallet at
// settlement.
func (s *PoolService) Forfeit(poolID int64, wallet string) error {
	pool, err := s.pools.ByID(poolID)
	if err != nil {
		return err
	}
	if pool.Status != model.PoolStatusPending && pool.Status != model.PoolStatusActive {
		return ErrCannotForfeit
	}

	err = s.participants.TransitionStatus(poolID, wallet,
		model.ParticipantStatusActive, model.ParticipantStatusForfeit)
	if errors.Is(err, repository.ErrStaleUpdate) {
		return ErrCannotForfeit
	}
	if err != nil {
		return err
	}

	s.log.Info("participant forfeited", "pool_id", poolID, "wallet", wallet, "pool_status", pool.Status)
	return nil
}

// CreateInvite mints a single-use invite code for a private pool.
func (s *PoolService) CreateInvite(poolID int64, createdBy string) (*model.Invite, error) {
	pool, err := s.pools.ByID(poolID)
	if err != nil {
		return nil, err
	}
	if pool.CreatorWallet != createdBy {
		return nil, errors.New("only the pool creator can mint invites")
	}

	invite := &model.Invite{
		Code:      inviteCode(),
		PoolID:    poolID,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	if err := s.invites.Create(invite); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}
	return invite, nil
}

// CheckNow runs the pool's proof adapter for one participant on demand,
// outside the monitor cadence, and submits a definitive verdict the same way
// a loop tick would.
func (s *PoolService) CheckNow(ctx context.Context, poolID int64, wallet string, now time.Time) (proof.Result, error) {
	pool, err := s.pools.ByID(poolID)
	if err != nil {
		return proof.Result{}, err
	}
	if pool.Status != model.PoolStatusActive {
		return proof.Result{}, ErrPoolNotOpen
	}

	participant, err := s.participants.ByKey(poolID, wallet)
	if err != nil {
		return proof.Result{}, err
	}
	if participant.Terminal() {
		return proof.Result{}, ErrNotParticipant
	}

	adapter, ok := s.adapters[pool.GoalKind]
	if !ok {
		return proof.Result{}, fmt.Errorf("%w: %s", ErrNoAdapterForGoal, pool.GoalKind)
	}

	day, ok := window.CurrentDay(pool.StartTimestamp, now)
	if !ok {
		return proof.Result{}, ErrPoolNotOpen
	}
	if day > pool.DurationDays {
		day = pool.DurationDays
	}

	checked, err := s.ledger.Checked(poolID, wallet)
	if err != nil {
		return proof.Result{}, err
	}

	result, err := adapter.Verify(ctx, pool, participant, day, now, checked)
	if err != nil {
		return proof.Result{}, err
	}

	if result.Verdict.Definitive() {
		changed, err := s.ledger.Record(poolID, wallet, day, adapter.Kind(), result)
		if err != nil {
			return result, err
		}
		if changed {
			if _, err := s.chain.SubmitVerify(ctx, poolID, wallet, day, result.Verdict == proof.VerdictPass); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// Stats returns the wallet's lifetime record.
func (s *PoolService) Stats(wallet string) (*model.User, error) {
	return s.users.ByWallet(wallet)
}

func inviteCode() string {
	var b [10]byte
	_, _ = rand.Read(b[:])
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:])
}
