package model

import "time"

// Checkin is a participant-submitted daily proof for lifestyle pools. The
// submission instant, not the time the monitor happens to look, decides
// whether it counts for a challenge day.
type Checkin struct {
	ID            string    `db:"id"`
	PoolID        int64     `db:"pool_id"`
	WalletAddress string    `db:"wallet_address"`
	Day           int       `db:"day"`
	Success       bool      `db:"success"`
	ScreenshotKey string    `db:"screenshot_key"`
	SubmittedAt   time.Time `db:"submitted_at"`
}
