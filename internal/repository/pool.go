package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/model"
)

var (
	ErrPoolNotFound = errors.New("pool not found")

	// ErrStaleUpdate means a conditional update matched no row: another
	// writer transitioned the record first. Callers treat it as "already
	// done" and move on.
	ErrStaleUpdate = errors.New("stale update: row already transitioned")
)

type PoolRepository interface {
	Create(pool *model.Pool) error
	ByID(poolID int64) (*model.Pool, error)
	ByStatus(status string) ([]*model.Pool, error)
	ByStatusAndKind(status string, kind model.GoalKind) ([]*model.Pool, error)
	// TransitionStatus updates status only when the pool is still in the
	// expected state, so racing loops cannot double-transition a pool.
	TransitionStatus(poolID int64, from, to string) error
	// Activate starts a pending pool, fixing its real start and end instants.
	Activate(poolID int64, start, end int64) error
	AddParticipant(poolID int64, stake uint64) error
	IncrementRefundAttempts(poolID int64) error
	SetSettlementSignature(poolID int64, signature string) error
	Delete(poolID int64) error
}

type poolRepository struct {
	db *sqlx.DB
}

func NewPoolRepository(db *sqlx.DB) PoolRepository {
	return &poolRepository{db: db}
}

func (r *poolRepository) Create(pool *model.Pool) error {
	query := `INSERT INTO pools (
	            pool_id, pool_pubkey, creator_wallet, name, description,
	            goal_kind, goal_spec, stake_amount, duration_days,
	            min_participants, max_participants, participant_count,
	            total_staked, distribution_mode, winner_percent,
	            charity_address, status, start_timestamp, end_timestamp,
	            scheduled_start_time, recruitment_hours,
	            require_min_participants, refund_attempts, is_public,
	            created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
	                  $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24,
	                  $25, $26)`

	_, err := r.db.Exec(query,
		pool.PoolID,
		pool.PoolPubkey,
		pool.CreatorWallet,
		pool.Name,
		pool.Description,
		pool.GoalKind,
		pool.GoalSpec,
		pool.StakeAmount,
		pool.DurationDays,
		pool.MinParticipants,
		pool.MaxParticipants,
		pool.ParticipantCount,
		pool.TotalStaked,
		pool.DistributionMode,
		pool.WinnerPercent,
		pool.CharityAddress,
		pool.Status,
		pool.StartTimestamp,
		pool.EndTimestamp,
		pool.ScheduledStartTime,
		pool.RecruitmentHours,
		pool.RequireMinParticipants,
		pool.RefundAttempts,
		pool.IsPublic,
		pool.CreatedAt,
		pool.UpdatedAt,
	)

	return err
}

func (r *poolRepository) ByID(poolID int64) (*model.Pool, error) {
	pool := &model.Pool{}
	query := `SELECT * FROM pools WHERE pool_id = $1`

	err := r.db.Get(pool, query, poolID)
	if err == sql.ErrNoRows {
		return nil, ErrPoolNotFound
	}

	return pool, err
}

func (r *poolRepository) ByStatus(status string) ([]*model.Pool, error) {
	var pools []*model.Pool
	query := `SELECT * FROM pools WHERE status = $1 ORDER BY pool_id ASC`

	err := r.db.Select(&pools, query, status)
	if err != nil {
		return nil, err
	}

	return pools, nil
}

func (r *poolRepository) ByStatusAndKind(status string, kind model.GoalKind) ([]*model.Pool, error) {
	var pools []*model.Pool
	query := `SELECT * FROM pools WHERE status = $1 AND goal_kind = $2 ORDER BY pool_id ASC`

	err := r.db.Select(&pools, query, status, kind)
	if err != nil {
		return nil, err
	}

	return pools, nil
}

func (r *poolRepository) TransitionStatus(poolID int64, from, to string) error {
	query := `UPDATE pools SET status = $1, updated_at = $2 WHERE pool_id = $3 AND status = $4`

	result, err := r.db.Exec(query, to, time.Now(), poolID, from)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrStaleUpdate
	}

	return nil
}

func (r *poolRepository) Activate(poolID int64, start, end int64) error {
	query := `UPDATE pools
	          SET status = $1, start_timestamp = $2, end_timestamp = $3, updated_at = $4
	          WHERE pool_id = $5 AND status = $6`

	result, err := r.db.Exec(query, model.PoolStatusActive, start, end, time.Now(), poolID, model.PoolStatusPending)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrStaleUpdate
	}

	return nil
}

func (r *poolRepository) AddParticipant(poolID int64, stake uint64) error {
	query := `UPDATE pools
	          SET participant_count = participant_count + 1,
	              total_staked = total_staked + $1,
	              updated_at = $2
	          WHERE pool_id = $3 AND participant_count < max_participants`

	result, err := r.db.Exec(query, stake, time.Now(), poolID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrStaleUpdate
	}

	return nil
}

func (r *poolRepository) IncrementRefundAttempts(poolID int64) error {
	query := `UPDATE pools SET refund_attempts = refund_attempts + 1, updated_at = $1 WHERE pool_id = $2`
	_, err := r.db.Exec(query, time.Now(), poolID)
	return err
}

func (r *poolRepository) SetSettlementSignature(poolID int64, signature string) error {
	query := `UPDATE pools SET settlement_signature = $1, updated_at = $2 WHERE pool_id = $3`
	_, err := r.db.Exec(query, signature, time.Now(), poolID)
	return err
}

func (r *poolRepository) Delete(poolID int64) error {
	query := `DELETE FROM pools WHERE pool_id = $1`
	result, err := r.db.Exec(query, poolID)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrPoolNotFound
	}

	return nil
}
