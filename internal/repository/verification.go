package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/model"
)

var ErrVerificationNotFound = errors.New("verification not found")

type VerificationRepository interface {
	Create(v *model.Verification) error
	ByKey(poolID int64, wallet string, day int) (*model.Verification, error)
	ByPoolAndWallet(poolID int64, wallet string) ([]*model.Verification, error)
	Update(v *model.Verification) error
	CountPassed(poolID int64, wallet string) (int, error)
}

type verificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(v *model.Verification) error {
	query := `INSERT INTO verifications (id, pool_id, wallet_address, day,
	            passed, kind, proof_data, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		v.ID,
		v.PoolID,
		v.WalletAddress,
		v.Day,
		v.Passed,
		v.Kind,
		v.ProofData,
		v.CreatedAt,
		v.UpdatedAt,
	)

	return err
}

func (r *verificationRepository) ByKey(poolID int64, wallet string, day int) (*model.Verification, error) {
	v := &model.Verification{}
	query := `SELECT * FROM verifications WHERE pool_id = $1 AND wallet_address = $2 AND day = $3`

	err := r.db.Get(v, query, poolID, wallet, day)
	if err == sql.ErrNoRows {
		return nil, ErrVerificationNotFound
	}

	return v, err
}

func (r *verificationRepository) ByPoolAndWallet(poolID int64, wallet string) ([]*model.Verification, error) {
	var out []*model.Verification
	query := `SELECT * FROM verifications WHERE pool_id = $1 AND wallet_address = $2 ORDER BY day ASC`

	err := r.db.Select(&out, query, poolID, wallet)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *verificationRepository) Update(v *model.Verification) error {
	query := `UPDATE verifications SET passed = $1, proof_data = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.Exec(query, v.Passed, v.ProofData, time.Now(), v.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrVerificationNotFound
	}

	return nil
}

func (r *verificationRepository) CountPassed(poolID int64, wallet string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM verifications WHERE pool_id = $1 AND wallet_address = $2 AND passed = TRUE`
	err := r.db.QueryRow(query, poolID, wallet).Scan(&count)
	return count, err
}
