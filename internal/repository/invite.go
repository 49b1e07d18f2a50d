package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/model"
)

var (
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteUsed     = errors.New("invite already used")
)

type InviteRepository interface {
	Create(i *model.Invite) error
	ByCode(code string) (*model.Invite, error)
	MarkUsed(code, wallet string) error
}

type inviteRepository struct {
	db *sqlx.DB
}

func NewInviteRepository(db *sqlx.DB) InviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Create(i *model.Invite) error {
	query := `INSERT INTO invites (code, pool_id, created_by, created_at)
	          VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(query, i.Code, i.PoolID, i.CreatedBy, i.CreatedAt)
	return err
}

func (r *inviteRepository) ByCode(code string) (*model.Invite, error) {
	i := &model.Invite{}
	query := `SELECT * FROM invites WHERE code = $1`

	err := r.db.Get(i, query, code)
	if err == sql.ErrNoRows {
		return nil, ErrInviteNotFound
	}

	return i, err
}

func (r *inviteRepository) MarkUsed(code, wallet string) error {
	query := `UPDATE invites SET used_by = $1, used_at = $2 WHERE code = $3 AND used_by IS NULL`

	result, err := r.db.Exec(query, wallet, time.Now(), code)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrInviteUsed
	}

	return nil
}
