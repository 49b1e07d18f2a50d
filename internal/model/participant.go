package model

import (
	"database/sql"
	"time"
)

const (
	ParticipantStatusActive  = "active"
	ParticipantStatusSuccess = "success"
	ParticipantStatusFailed  = "failed"
	ParticipantStatusForfeit = "forfeit"
)

type Participant struct {
	PoolID          int64          `db:"pool_id"`
	WalletAddress   string         `db:"wallet_address"`
	StakeAmount     uint64         `db:"stake_amount"`
	JoinTimestamp   int64          `db:"join_timestamp"`
	Status          string         `db:"status"`
	DaysVerified    int            `db:"days_verified"`
	Refunded        bool           `db:"refunded"`
	RefundSignature sql.NullString `db:"refund_signature"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Terminal reports whether the participant can no longer change status.
// Active participants regress to failed/forfeit or finish as success; the
// reverse transitions never happen.
func (p *Participant) Terminal() bool {
	return p.Status != ParticipantStatusActive
}
