package model

import (
	"database/sql"
	"time"
)

const (
	PoolStatusPending = "pending"
	PoolStatusActive  = "active"
	PoolStatusSettled = "settled"
	PoolStatusExpired = "expired"
)

const (
	DistributionCompetitive = "competitive"
	DistributionCharity     = "charity"
	DistributionSplit       = "split"
)

type Pool struct {
	PoolID                 int64          `db:"pool_id"`
	PoolPubkey             string         `db:"pool_pubkey"`
	CreatorWallet          string         `db:"creator_wallet"`
	Name                   string         `db:"name"`
	Description            string         `db:"description"`
	GoalKind               GoalKind       `db:"goal_kind"`
	GoalSpec               GoalSpec       `db:"goal_spec"`
	StakeAmount            uint64         `db:"stake_amount"` // lamports
	DurationDays           int            `db:"duration_days"`
	MinParticipants        int            `db:"min_participants"`
	MaxParticipants        int            `db:"max_participants"`
	ParticipantCount       int            `db:"participant_count"`
	TotalStaked            uint64         `db:"total_staked"`
	DistributionMode       string         `db:"distribution_mode"`
	WinnerPercent          int            `db:"winner_percent"` // split mode only
	CharityAddress         string         `db:"charity_address"`
	Status                 string         `db:"status"`
	StartTimestamp         int64          `db:"start_timestamp"`
	EndTimestamp           int64          `db:"end_timestamp"`
	ScheduledStartTime     sql.NullInt64  `db:"scheduled_start_time"`
	RecruitmentHours       int            `db:"recruitment_hours"`
	RequireMinParticipants bool           `db:"require_min_participants"`
	RefundAttempts         int            `db:"refund_attempts"`
	SettlementSignature    sql.NullString `db:"settlement_signature"`
	IsPublic               bool           `db:"is_public"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

// ImmediateStart reports whether the pool skips recruitment entirely.
func (p *Pool) ImmediateStart() bool {
	return p.RecruitmentHours == 0 || !p.ScheduledStartTime.Valid
}

// RecruitmentDeadline is the instant at which a pending pool must either
// start or expire. Zero for immediate-start pools.
func (p *Pool) RecruitmentDeadline() int64 {
	if p.ImmediateStart() {
		return 0
	}
	return p.ScheduledStartTime.Int64
}
