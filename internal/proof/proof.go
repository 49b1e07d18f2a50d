// Package proof turns heterogeneous external evidence (commit feeds,
// screenshots, balances, transaction history) into tri-state verdicts for
// one participant and one challenge day.
package proof

import (
	"context"
	"errors"
	"time"

	"github.com/commitmentparties/engine/internal/model"
)

// Verdict is the tri-state outcome of a proof check.
type Verdict int

const (
	// VerdictPending means the day is still open and no qualifying proof
	// exists yet. Never persisted; the participant must not be failed.
	VerdictPending Verdict = iota
	VerdictPass
	VerdictFail
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictFail:
		return "fail"
	default:
		return "pending"
	}
}

// Definitive reports whether the verdict should be persisted and submitted
// on-chain.
func (v Verdict) Definitive() bool {
	return v != VerdictPending
}

// Error taxonomy. Adapters wrap one of these sentinels so the monitor loops
// can pattern-match instead of inspecting error strings.
var (
	// ErrTransient marks a network/timeout/5xx failure from a proof source.
	// The tick is aborted for that participant and retried next tick; it is
	// never escalated to a fail verdict.
	ErrTransient = errors.New("transient proof source failure")

	// ErrClassifier marks a malformed or unusable classifier response. It is
	// surfaced distinctly and must not be coerced into a pass or a fail.
	ErrClassifier = errors.New("classifier error")

	// ErrConfig marks a data problem (missing pool metadata, unverified
	// identity, wrong goal kind). Retrying cannot fix it; the participant is
	// skipped without backoff.
	ErrConfig = errors.New("verification configuration error")
)

// Result is the outcome of one adapter invocation. ProofIDs lists every
// proof item inspected in this run (checked or newly checked) so the ledger
// can union them into the row's idempotency set.
type Result struct {
	Verdict  Verdict
	ProofIDs []string
	Details  map[string]string
}

// CheckedSet is the set of proof-item identifiers already charged against an
// external classifier for this (pool, participant).
type CheckedSet map[string]struct{}

// Adapter is the common contract of the four proof sources. now is passed in
// rather than read from the clock so ticks are replayable in tests.
type Adapter interface {
	Verify(ctx context.Context, pool *model.Pool, participant *model.Participant, day int, now time.Time, checked CheckedSet) (Result, error)
	// Kind labels the verification rows this adapter produces.
	Kind() string
}
