package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/model"
)

type CheckinRepository interface {
	Create(c *model.Checkin) error
	Successful(poolID int64, wallet string, day int) ([]*model.Checkin, error)
}

type checkinRepository struct {
	db *sqlx.DB
}

func NewCheckinRepository(db *sqlx.DB) CheckinRepository {
	return &checkinRepository{db: db}
}

func (r *checkinRepository) Create(c *model.Checkin) error {
	query := `INSERT INTO checkins (id, pool_id, wallet_address, day, success,
	            screenshot_key, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		c.ID,
		c.PoolID,
		c.WalletAddress,
		c.Day,
		c.Success,
		c.ScreenshotKey,
		c.SubmittedAt,
	)

	return err
}

func (r *checkinRepository) Successful(poolID int64, wallet string, day int) ([]*model.Checkin, error) {
	var out []*model.Checkin
	query := `SELECT * FROM checkins
	          WHERE pool_id = $1 AND wallet_address = $2 AND day = $3 AND success = TRUE
	          ORDER BY submitted_at ASC`

	err := r.db.Select(&out, query, poolID, wallet, day)
	if err != nil {
		return nil, err
	}

	return out, nil
}
