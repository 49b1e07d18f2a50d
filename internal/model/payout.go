package model

import "time"

const (
	PayoutKindWinner  = "winner"
	PayoutKindCharity = "charity"
)

// Payout is an append-only settlement record: exactly one per winner plus at
// most one charity remainder per pool. The (pool, recipient, kind) unique key
// makes settlement retries duplicate-safe.
type Payout struct {
	ID                  string    `db:"id"`
	PoolID              int64     `db:"pool_id"`
	RecipientWallet     string    `db:"recipient_wallet"`
	Amount              uint64    `db:"amount"` // lamports
	Kind                string    `db:"kind"`
	SettlementSignature string    `db:"settlement_signature"`
	CreatedAt           time.Time `db:"created_at"`
}
