package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/proof"
	"github.com/commitmentparties/engine/internal/repository"
)

// LedgerService owns the per-(pool, participant, day) verdict rows. Verdict
// writes are monotone: a recorded pass can never flip back to fail, while a
// recorded fail may still widen to pass when a timely proof surfaces during
// the grace window. Proof-id sets only ever grow.
type LedgerService struct {
	verifications repository.VerificationRepository
	participants  repository.ParticipantRepository
}

func NewLedgerService(
	verifications repository.VerificationRepository,
	participants repository.ParticipantRepository,
) *LedgerService {
	return &LedgerService{
		verifications: verifications,
		participants:  participants,
	}
}

// Checked returns the proof-item ids already recorded for a day, across all
// of the participant's rows in the pool. Monitor loops consult it before
// invoking an adapter; it is what bounds external classifier spend.
func (s *LedgerService) Checked(poolID int64, wallet string) (proof.CheckedSet, error) {
	rows, err := s.verifications.ByPoolAndWallet(poolID, wallet)
	if err != nil {
		return nil, fmt.Errorf("load verifications: %w", err)
	}

	checked := make(proof.CheckedSet)
	for _, row := range rows {
		for _, id := range row.ProofData.CheckedProofIDs {
			checked[id] = struct{}{}
		}
	}
	return checked, nil
}

// Record persists a definitive verdict for one day. It returns true when the
// stored decision changed (new row, or fail widened to pass), which is the
// caller's cue to submit the verdict on-chain. Pending verdicts are rejected:
// they are a signal to wait, not a fact to store.
func (s *LedgerService) Record(poolID int64, wallet string, day int, kind string, result proof.Result) (bool, error) {
	if !result.Verdict.Definitive() {
		return false, errors.New("ledger: refusing to record a pending verdict")
	}
	passed := result.Verdict == proof.VerdictPass

	existing, err := s.verifications.ByKey(poolID, wallet, day)
	if err != nil && !errors.Is(err, repository.ErrVerificationNotFound) {
		return false, fmt.Errorf("load verification: %w", err)
	}

	if existing == nil {
		now := time.Now()
		row := &model.Verification{
			ID:            uuid.New().String(),
			PoolID:        poolID,
			WalletAddress: wallet,
			Day:           day,
			Passed:        passed,
			Kind:          kind,
			ProofData: model.ProofData{
				CheckedProofIDs: result.ProofIDs,
				Details:         result.Details,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.verifications.Create(row); err != nil {
			return false, fmt.Errorf("create verification: %w", err)
		}
		if passed {
			if err := s.refreshDaysVerified(poolID, wallet); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	// Merge: union proof ids, overlay details, widen the verdict only in
	// the fail-to-pass direction.
	existing.ProofData.CheckedProofIDs = unionIDs(existing.ProofData.CheckedProofIDs, result.ProofIDs)
	if existing.ProofData.Details == nil {
		existing.ProofData.Details = make(map[string]string)
	}
	for k, v := range result.Details {
		existing.ProofData.Details[k] = v
	}

	changed := false
	if passed && !existing.Passed {
		existing.Passed = true
		changed = true
	}

	if err := s.verifications.Update(existing); err != nil {
		return false, fmt.Errorf("update verification: %w", err)
	}
	if changed {
		if err := s.refreshDaysVerified(poolID, wallet); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// Verdict returns the recorded row for one day, or nil when none exists.
func (s *LedgerService) Verdict(poolID int64, wallet string, day int) (*model.Verification, error) {
	row, err := s.verifications.ByKey(poolID, wallet, day)
	if errors.Is(err, repository.ErrVerificationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// CountPassed is the participant's cumulative passed-day count.
func (s *LedgerService) CountPassed(poolID int64, wallet string) (int, error) {
	return s.verifications.CountPassed(poolID, wallet)
}

func (s *LedgerService) refreshDaysVerified(poolID int64, wallet string) error {
	count, err := s.verifications.CountPassed(poolID, wallet)
	if err != nil {
		return fmt.Errorf("count passed: %w", err)
	}
	if err := s.participants.SetDaysVerified(poolID, wallet, count); err != nil {
		return fmt.Errorf("set days verified: %w", err)
	}
	return nil
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
