package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/model"
)

var ErrParticipantNotFound = errors.New("participant not found")

type ParticipantRepository interface {
	Create(p *model.Participant) error
	ByKey(poolID int64, wallet string) (*model.Participant, error)
	ByPool(poolID int64) ([]*model.Participant, error)
	ByPoolAndStatus(poolID int64, status string) ([]*model.Participant, error)
	// TransitionStatus is conditional on the current status so two loops
	// racing to fail the same participant resolve to a single transition.
	TransitionStatus(poolID int64, wallet, from, to string) error
	SetDaysVerified(poolID int64, wallet string, days int) error
	MarkRefunded(poolID int64, wallet, signature string) error
}

type participantRepository struct {
	db *sqlx.DB
}

func NewParticipantRepository(db *sqlx.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(p *model.Participant) error {
	query := `INSERT INTO participants (pool_id, wallet_address, stake_amount,
	            join_timestamp, status, days_verified, refunded, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		p.PoolID,
		p.WalletAddress,
		p.StakeAmount,
		p.JoinTimestamp,
		p.Status,
		p.DaysVerified,
		p.Refunded,
		p.CreatedAt,
		p.UpdatedAt,
	)

	return err
}

func (r *participantRepository) ByKey(poolID int64, wallet string) (*model.Participant, error) {
	p := &model.Participant{}
	query := `SELECT * FROM participants WHERE pool_id = $1 AND wallet_address = $2`

	err := r.db.Get(p, query, poolID, wallet)
	if err == sql.ErrNoRows {
		return nil, ErrParticipantNotFound
	}

	return p, err
}

func (r *participantRepository) ByPool(poolID int64) ([]*model.Participant, error) {
	var out []*model.Participant
	query := `SELECT * FROM participants WHERE pool_id = $1 ORDER BY join_timestamp ASC`

	err := r.db.Select(&out, query, poolID)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *participantRepository) ByPoolAndStatus(poolID int64, status string) ([]*model.Participant, error) {
	var out []*model.Participant
	query := `SELECT * FROM participants WHERE pool_id = $1 AND status = $2 ORDER BY join_timestamp ASC`

	err := r.db.Select(&out, query, poolID, status)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *participantRepository) TransitionStatus(poolID int64, wallet, from, to string) error {
	query := `UPDATE participants SET status = $1, updated_at = $2
	          WHERE pool_id = $3 AND wallet_address = $4 AND status = $5`

	result, err := r.db.Exec(query, to, time.Now(), poolID, wallet, from)
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

func (r *participantRepository) SetDaysVerified(poolID int64, wallet string, days int) error {
	query := `UPDATE participants SET days_verified = $1, updated_at = $2
	          WHERE pool_id = $3 AND wallet_address = $4`

	result, err := r.db.Exec(query, days, time.Now(), poolID, wallet)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrParticipantNotFound
	}

	return nil
}

func (r *participantRepository) MarkRefunded(poolID int64, wallet, signature string) error {
	query := `UPDATE participants SET refunded = TRUE, refund_signature = $1, updated_at = $2
	          WHERE pool_id = $3 AND wallet_address = $4 AND refunded = FALSE`

	result, err := r.db.Exec(query, signature, time.Now(), poolID, wallet)
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
