package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
)

// In-memory repositories mirroring the conditional-update discipline of the
// SQL layer, so service tests exercise the same stale-update paths. Reads
// return copies, matching the snapshot semantics of a row scan.

type memPools struct {
	pools map[int64]*model.Pool
}

func newMemPools(pools ...*model.Pool) *memPools {
	m := &memPools{pools: make(map[int64]*model.Pool)}
	for _, p := range pools {
		m.pools[p.PoolID] = p
	}
	return m
}

func (m *memPools) Create(pool *model.Pool) error {
	if _, ok := m.pools[pool.PoolID]; ok {
		return errors.New("duplicate pool")
	}
	m.pools[pool.PoolID] = pool
	return nil
}

func (m *memPools) ByID(poolID int64) (*model.Pool, error) {
	p, ok := m.pools[poolID]
	if !ok {
		return nil, repository.ErrPoolNotFound
	}
	c := *p
	return &c, nil
}

func (m *memPools) ByStatus(status string) ([]*model.Pool, error) {
	var out []*model.Pool
	for _, p := range m.pools {
		if p.Status == status {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out, nil
}

func (m *memPools) ByStatusAndKind(status string, kind model.GoalKind) ([]*model.Pool, error) {
	var out []*model.Pool
	for _, p := range m.pools {
		if p.Status == status && p.GoalKind == kind {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out, nil
}

func (m *memPools) TransitionStatus(poolID int64, from, to string) error {
	p, ok := m.pools[poolID]
	if !ok || p.Status != from {
		return repository.ErrStaleUpdate
	}
	p.Status = to
	return nil
}

func (m *memPools) Activate(poolID int64, start, end int64) error {
	p, ok := m.pools[poolID]
	if !ok || p.Status != model.PoolStatusPending {
		return repository.ErrStaleUpdate
	}
	p.Status = model.PoolStatusActive
	p.StartTimestamp = start
	p.EndTimestamp = end
	return nil
}

func (m *memPools) AddParticipant(poolID int64, stake uint64) error {
	p, ok := m.pools[poolID]
	if !ok || p.ParticipantCount >= p.MaxParticipants {
		return repository.ErrStaleUpdate
	}
	p.ParticipantCount++
	p.TotalStaked += stake
	return nil
}

func (m *memPools) IncrementRefundAttempts(poolID int64) error {
	p, ok := m.pools[poolID]
	if !ok {
		return repository.ErrPoolNotFound
	}
	p.RefundAttempts++
	return nil
}

func (m *memPools) SetSettlementSignature(poolID int64, signature string) error {
	p, ok := m.pools[poolID]
	if !ok {
		return repository.ErrPoolNotFound
	}
	p.SettlementSignature.String = signature
	p.SettlementSignature.Valid = true
	return nil
}

func (m *memPools) Delete(poolID int64) error {
	if _, ok := m.pools[poolID]; !ok {
		return repository.ErrPoolNotFound
	}
	delete(m.pools, poolID)
	return nil
}

type memParticipants struct {
	rows map[string]*model.Participant
}

func participantKey(poolID int64, wallet string) string {
	return fmt.Sprintf("%d/%s", poolID, wallet)
}

func newMemParticipants(participants ...*model.Participant) *memParticipants {
	m := &memParticipants{rows: make(map[string]*model.Participant)}
	for _, p := range participants {
		m.rows[participantKey(p.PoolID, p.WalletAddress)] = p
	}
	return m
}

func (m *memParticipants) Create(p *model.Participant) error {
	key := participantKey(p.PoolID, p.WalletAddress)
	if _, ok := m.rows[key]; ok {
		return errors.New("duplicate participant")
	}
	m.rows[key] = p
	return nil
}

func (m *memParticipants) ByKey(poolID int64, wallet string) (*model.Participant, error) {
	p, ok := m.rows[participantKey(poolID, wallet)]
	if !ok {
		return nil, repository.ErrParticipantNotFound
	}
	c := *p
	return &c, nil
}

func (m *memParticipants) ByPool(poolID int64) ([]*model.Participant, error) {
	var out []*model.Participant
	for _, p := range m.rows {
		if p.PoolID == poolID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WalletAddress < out[j].WalletAddress })
	return out, nil
}

func (m *memParticipants) ByPoolAndStatus(poolID int64, status string) ([]*model.Participant, error) {
	all, _ := m.ByPool(poolID)
	var out []*model.Participant
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memParticipants) TransitionStatus(poolID int64, wallet, from, to string) error {
	p, ok := m.rows[participantKey(poolID, wallet)]
	if !ok || p.Status != from {
		return repository.ErrStaleUpdate
	}
	p.Status = to
	return nil
}

func (m *memParticipants) SetDaysVerified(poolID int64, wallet string, days int) error {
	p, ok := m.rows[participantKey(poolID, wallet)]
	if !ok {
		return repository.ErrParticipantNotFound
	}
	p.DaysVerified = days
	return nil
}

func (m *memParticipants) MarkRefunded(poolID int64, wallet, signature string) error {
	p, ok := m.rows[participantKey(poolID, wallet)]
	if !ok || p.Refunded {
		return repository.ErrStaleUpdate
	}
	p.Refunded = true
	p.RefundSignature.String = signature
	p.RefundSignature.Valid = true
	return nil
}

type memVerifications struct {
	rows map[string]*model.Verification
}

func verificationKey(poolID int64, wallet string, day int) string {
	return fmt.Sprintf("%d/%s/%d", poolID, wallet, day)
}

func newMemVerifications() *memVerifications {
	return &memVerifications{rows: make(map[string]*model.Verification)}
}

func (m *memVerifications) Create(v *model.Verification) error {
	key := verificationKey(v.PoolID, v.WalletAddress, v.Day)
	if _, ok := m.rows[key]; ok {
		return errors.New("duplicate verification")
	}
	m.rows[key] = v
	return nil
}

func (m *memVerifications) ByKey(poolID int64, wallet string, day int) (*model.Verification, error) {
	v, ok := m.rows[verificationKey(poolID, wallet, day)]
	if !ok {
		return nil, repository.ErrVerificationNotFound
	}
	c := *v
	return &c, nil
}

func (m *memVerifications) ByPoolAndWallet(poolID int64, wallet string) ([]*model.Verification, error) {
	var out []*model.Verification
	for _, v := range m.rows {
		if v.PoolID == poolID && v.WalletAddress == wallet {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (m *memVerifications) Update(v *model.Verification) error {
	key := verificationKey(v.PoolID, v.WalletAddress, v.Day)
	if _, ok := m.rows[key]; !ok {
		return repository.ErrVerificationNotFound
	}
	c := *v
	m.rows[key] = &c
	return nil
}

func (m *memVerifications) CountPassed(poolID int64, wallet string) (int, error) {
	count := 0
	for _, v := range m.rows {
		if v.PoolID == poolID && v.WalletAddress == wallet && v.Passed {
			count++
		}
	}
	return count, nil
}

type memPayouts struct {
	rows map[string]*model.Payout
}

func newMemPayouts() *memPayouts {
	return &memPayouts{rows: make(map[string]*model.Payout)}
}

func (m *memPayouts) Create(p *model.Payout) error {
	key := fmt.Sprintf("%d/%s/%s", p.PoolID, p.RecipientWallet, p.Kind)
	if _, ok := m.rows[key]; ok {
		return repository.ErrPayoutExists
	}
	m.rows[key] = p
	return nil
}

func (m *memPayouts) ByPool(poolID int64) ([]*model.Payout, error) {
	var out []*model.Payout
	for _, p := range m.rows {
		if p.PoolID == poolID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientWallet < out[j].RecipientWallet })
	return out, nil
}

type memInvites struct {
	rows map[string]*model.Invite
}

func newMemInvites() *memInvites {
	return &memInvites{rows: make(map[string]*model.Invite)}
}

func (m *memInvites) Create(i *model.Invite) error {
	if _, ok := m.rows[i.Code]; ok {
		return errors.New("duplicate invite code")
	}
	m.rows[i.Code] = i
	return nil
}

func (m *memInvites) ByCode(code string) (*model.Invite, error) {
	i, ok := m.rows[code]
	if !ok {
		return nil, repository.ErrInviteNotFound
	}
	c := *i
	return &c, nil
}

func (m *memInvites) MarkUsed(code, wallet string) error {
	i, ok := m.rows[code]
	if !ok || i.UsedBy.Valid {
		return repository.ErrInviteUsed
	}
	i.UsedBy = sql.NullString{String: wallet, Valid: true}
	i.UsedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

type memUsers struct {
	rows map[string]*model.User
}

func newMemUsers(users ...*model.User) *memUsers {
	m := &memUsers{rows: make(map[string]*model.User)}
	for _, u := range users {
		m.rows[u.WalletAddress] = u
	}
	return m
}

func (m *memUsers) Create(u *model.User) error {
	if _, ok := m.rows[u.WalletAddress]; ok {
		return errors.New("duplicate user")
	}
	m.rows[u.WalletAddress] = u
	return nil
}

func (m *memUsers) ByWallet(wallet string) (*model.User, error) {
	u, ok := m.rows[wallet]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) SetVerifiedGitHubUsername(wallet, username string) error {
	u, ok := m.rows[wallet]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.VerifiedGitHubUsername.String = username
	u.VerifiedGitHubUsername.Valid = true
	return nil
}

func (m *memUsers) RecordOutcome(wallet string, completed bool, earned uint64) error {
	u, ok := m.rows[wallet]
	if !ok {
		return nil
	}
	u.TotalGames++
	if completed {
		u.GamesCompleted++
	}
	u.TotalEarned += earned
	return nil
}

// fakeSubmitter records chain submissions and can be scripted to fail.
type fakeSubmitter struct {
	verifies    []string
	distributes int
	refunds     []string
	refundErr   map[string]error // per-wallet refund failures
	distErr     error
}

func (f *fakeSubmitter) SubmitVerify(ctx context.Context, poolID int64, wallet string, day int, passed bool) (string, error) {
	f.verifies = append(f.verifies, fmt.Sprintf("%d/%s/%d/%t", poolID, wallet, day, passed))
	return "verify-sig", nil
}

func (f *fakeSubmitter) SubmitDistribute(ctx context.Context, pool *model.Pool, winners []string) (string, error) {
	if f.distErr != nil {
		return "", f.distErr
	}
	f.distributes++
	return "dist-sig", nil
}

func (f *fakeSubmitter) Refund(ctx context.Context, recipient string, lamports uint64) (string, error) {
	if err, ok := f.refundErr[recipient]; ok {
		return "", err
	}
	f.refunds = append(f.refunds, recipient)
	return "refund-sig", nil
}

func activeParticipant(poolID int64, wallet string) *model.Participant {
	now := time.Now()
	return &model.Participant{
		PoolID:        poolID,
		WalletAddress: wallet,
		StakeAmount:   1_000_000_000,
		JoinTimestamp: now.Unix(),
		Status:        model.ParticipantStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
