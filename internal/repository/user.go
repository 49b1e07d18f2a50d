package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/commitmentparties/engine/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(u *model.User) error
	ByWallet(wallet string) (*model.User, error)
	SetVerifiedGitHubUsername(wallet, username string) error
	// RecordOutcome bumps the per-user stats after a pool settles.
	RecordOutcome(wallet string, completed bool, earned uint64) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(u *model.User) error {
	query := `INSERT INTO users (wallet_address, username, verified_github_username,
	            reputation_score, streak_count, total_games, games_completed,
	            total_earned, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		u.WalletAddress,
		u.Username,
		u.VerifiedGitHubUsername,
		u.ReputationScore,
		u.StreakCount,
		u.TotalGames,
		u.GamesCompleted,
		u.TotalEarned,
		u.CreatedAt,
		u.UpdatedAt,
	)

	return err
}

func (r *userRepository) ByWallet(wallet string) (*model.User, error) {
	u := &model.User{}
	query := `SELECT * FROM users WHERE wallet_address = $1`

	err := r.db.Get(u, query, wallet)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return u, err
}

func (r *userRepository) SetVerifiedGitHubUsername(wallet, username string) error {
	query := `UPDATE users SET verified_github_username = $1, updated_at = $2 WHERE wallet_address = $3`

	result, err := r.db.Exec(query, username, time.Now(), wallet)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *userRepository) RecordOutcome(wallet string, completed bool, earned uint64) error {
	query := `UPDATE users
	          SET total_games = total_games + 1,
	              games_completed = games_completed + $1,
	              total_earned = total_earned + $2,
	              updated_at = $3
	          WHERE wallet_address = $4`

	done := 0
	if completed {
		done = 1
	}

	_, err := r.db.Exec(query, done, earned, time.Now(), wallet)
	return err
}
