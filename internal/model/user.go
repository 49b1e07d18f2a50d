package model

import (
	"database/sql"
	"time"
)

type User struct {
	WalletAddress          string         `db:"wallet_address"`
	Username               sql.NullString `db:"username"`
	VerifiedGitHubUsername sql.NullString `db:"verified_github_username"`
	ReputationScore        int            `db:"reputation_score"`
	StreakCount            int            `db:"streak_count"`
	TotalGames             int            `db:"total_games"`
	GamesCompleted         int            `db:"games_completed"`
	TotalEarned            uint64         `db:"total_earned"` // lamports
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}
