package model

import (
	"database/sql"
	"time"
)

// Invite is a single-use code that admits a wallet to a private pool.
type Invite struct {
	Code      string         `db:"code"`
	PoolID    int64          `db:"pool_id"`
	CreatedBy string         `db:"created_by"`
	UsedBy    sql.NullString `db:"used_by"`
	UsedAt    sql.NullTime   `db:"used_at"`
	CreatedAt time.Time      `db:"created_at"`
}
