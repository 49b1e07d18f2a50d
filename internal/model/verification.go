package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ProofData is the opaque metadata attached to a verification row. The
// checked-proof-id set is what makes re-verification idempotent: a proof
// item (commit SHA, check-in id) listed here is never sent to an external
// classifier again.
type ProofData struct {
	CheckedProofIDs []string          `json:"checked_proof_ids,omitempty"`
	Details         map[string]string `json:"details,omitempty"`
}

func (p ProofData) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *ProofData) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into ProofData", src)
	}
}

// Verification is the persisted verdict for one (pool, wallet, day). Pending
// verdicts are never persisted; a row always carries a definitive pass/fail.
type Verification struct {
	ID            string    `db:"id"`
	PoolID        int64     `db:"pool_id"`
	WalletAddress string    `db:"wallet_address"`
	Day           int       `db:"day"`
	Passed        bool      `db:"passed"`
	Kind          string    `db:"kind"`
	ProofData     ProofData `db:"proof_data"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}
