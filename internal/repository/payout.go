package repository

import (
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/model"
)

// ErrPayoutExists means a payout for the same (pool, recipient, kind) was
// already recorded. Settlement retries hit this and treat it as done.
var ErrPayoutExists = errors.New("payout already recorded")

type PayoutRepository interface {
	Create(p *model.Payout) error
	ByPool(poolID int64) ([]*model.Payout, error)
}

type payoutRepository struct {
	db *sqlx.DB
}

func NewPayoutRepository(db *sqlx.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(p *model.Payout) error {
	query := `INSERT INTO payouts (id, pool_id, recipient_wallet, amount, kind,
	            settlement_signature, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		p.ID,
		p.PoolID,
		p.RecipientWallet,
		p.Amount,
		p.Kind,
		p.SettlementSignature,
		p.CreatedAt,
	)

	if err != nil && isUniqueViolation(err) {
		return ErrPayoutExists
	}

	return err
}

func (r *payoutRepository) ByPool(poolID int64) ([]*model.Payout, error) {
	var out []*model.Payout
	query := `SELECT * FROM payouts WHERE pool_id = $1 ORDER BY created_at ASC`

	err := r.db.Select(&out, query, poolID)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// isUniqueViolation matches the sqlite and postgres unique-constraint error
// texts. Both drivers surface the constraint name, so string matching is
// stable enough without importing driver-specific error types here.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
