package proof

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitmentparties/engine/internal/github"
	"github.com/commitmentparties/engine/internal/model"
)

type fakeFeed struct {
	commits   []github.Commit
	details   map[string]*github.CommitDetail
	err       error
	detailErr error
}

func (f *fakeFeed) PushedCommits(ctx context.Context, username string) ([]github.Commit, error) {
	return f.commits, f.err
}

func (f *fakeFeed) CommitDetail(ctx context.Context, repo, sha string) (*github.CommitDetail, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if d, ok := f.details[sha]; ok {
		return d, nil
	}
	return &github.CommitDetail{SHA: sha, LinesChanged: 10}, nil
}

type fakeJudge struct {
	nonsense map[string]bool // keyed by commit message
	err      error
	calls    int
}

func (f *fakeJudge) IsNonsense(ctx context.Context, message, patch string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.nonsense[message], nil
}

type fakeUsers struct {
	username string
	err      error
}

func (f *fakeUsers) Create(u *model.User) error { return nil }

func (f *fakeUsers) ByWallet(wallet string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := &model.User{WalletAddress: wallet}
	if f.username != "" {
		u.VerifiedGitHubUsername = sql.NullString{String: f.username, Valid: true}
	}
	return u, nil
}

func (f *fakeUsers) SetVerifiedGitHubUsername(wallet, username string) error { return nil }

func (f *fakeUsers) RecordOutcome(wallet string, completed bool, earned uint64) error { return nil }

const testStart = int64(1_700_000_000)

func commitsPool(minPerDay int) *model.Pool {
	return &model.Pool{
		PoolID:         1,
		StartTimestamp: testStart,
		DurationDays:   7,
		GoalKind:       model.GoalGitHubCommits,
		GoalSpec: model.GoalSpec{
			Kind:    model.GoalGitHubCommits,
			Commits: &model.CommitsGoal{MinCommitsPerDay: minPerDay},
		},
	}
}

func testParticipant() *model.Participant {
	return &model.Participant{PoolID: 1, WalletAddress: "wallet1", Status: model.ParticipantStatusActive}
}

func inDay(day int, offset time.Duration) time.Time {
	return time.Unix(testStart, 0).Add(time.Duration(day-1) * 24 * time.Hour).Add(offset)
}

func TestCommitsAdapter_Pass(t *testing.T) {
	feed := &fakeFeed{commits: []github.Commit{
		{SHA: "aaa", Message: "fix parser edge case", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
	}}
	adapter := NewCommitsAdapter(feed, nil, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, 2*time.Hour), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictPass, result.Verdict)
	assert.Equal(t, []string{"aaa"}, result.ProofIDs)
}

func TestCommitsAdapter_PendingWhileDayOpen(t *testing.T) {
	feed := &fakeFeed{}
	adapter := NewCommitsAdapter(feed, nil, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, 2*time.Hour), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictPending, result.Verdict)
}

func TestCommitsAdapter_FailAfterDayEnds(t *testing.T) {
	feed := &fakeFeed{}
	adapter := NewCommitsAdapter(feed, nil, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(2, time.Minute), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, result.Verdict)
}

func TestCommitsAdapter_MechanicalFilters(t *testing.T) {
	feed := &fakeFeed{commits: []github.Commit{
		{SHA: "early", Message: "legit work before the day", Repo: "alice/proj", PushedAt: inDay(1, -time.Hour)},
		{SHA: "late", Message: "legit work after the day", Repo: "alice/proj", PushedAt: inDay(2, time.Hour)},
		{SHA: "short", Message: "wip", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
		{SHA: "dup", Message: "counted exactly once", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
		{SHA: "dup", Message: "counted exactly once", Repo: "alice/proj", PushedAt: inDay(1, 2*time.Hour)},
	}}
	adapter := NewCommitsAdapter(feed, nil, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), commitsPool(2), testParticipant(), 1, inDay(2, time.Minute), nil)
	require.NoError(t, err)

	// Only "dup" survives, once; two were required.
	assert.Equal(t, VerdictFail, result.Verdict)
	assert.Equal(t, "1", result.Details["qualifying_commits"])
}

func TestCommitsAdapter_RepoFilter(t *testing.T) {
	feed := &fakeFeed{commits: []github.Commit{
		{SHA: "aaa", Message: "work in the wrong repo", Repo: "alice/other", PushedAt: inDay(1, time.Hour)},
	}}
	pool := commitsPool(1)
	pool.GoalSpec.Commits.Repo = "alice/proj"
	adapter := NewCommitsAdapter(feed, nil, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), pool, testParticipant(), 1, inDay(2, time.Minute), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, result.Verdict)
}

func TestCommitsAdapter_NonsenseRejectedAndNotRecharged(t *testing.T) {
	feed := &fakeFeed{commits: []github.Commit{
		{SHA: "junk", Message: "asdf asdf asdf", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
	}}
	judge := &fakeJudge{nonsense: map[string]bool{"asdf asdf asdf": true}}
	adapter := NewCommitsAdapter(feed, judge, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, 2*time.Hour), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictPending, result.Verdict)
	assert.Equal(t, []string{"rejected:junk"}, result.ProofIDs)
	assert.Equal(t, 1, judge.calls)

	// A later tick with the rejection recorded never consults the judge again.
	checked := CheckedSet{"rejected:junk": {}}
	result, err = adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, 3*time.Hour), checked)
	require.NoError(t, err)

	assert.Equal(t, VerdictPending, result.Verdict)
	assert.Equal(t, 1, judge.calls)
}

func TestCommitsAdapter_AcceptedNotRejudged(t *testing.T) {
	feed := &fakeFeed{commits: []github.Commit{
		{SHA: "aaa", Message: "implement retry backoff", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
	}}
	judge := &fakeJudge{}
	adapter := NewCommitsAdapter(feed, judge, &fakeUsers{username: "alice"}, slog.Default())

	checked := CheckedSet{"aaa": {}}
	result, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, 2*time.Hour), checked)
	require.NoError(t, err)

	assert.Equal(t, VerdictPass, result.Verdict)
	assert.Zero(t, judge.calls)
}

func TestCommitsAdapter_JudgeErrorFailsOpen(t *testing.T) {
	feed := &fakeFeed{commits: []github.Commit{
		{SHA: "aaa", Message: "implement retry backoff", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
	}}
	judge := &fakeJudge{err: errors.New("model unavailable")}
	adapter := NewCommitsAdapter(feed, judge, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, 2*time.Hour), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictPass, result.Verdict)
}

func TestCommitsAdapter_MinLines(t *testing.T) {
	feed := &fakeFeed{
		commits: []github.Commit{
			{SHA: "tiny", Message: "bump version string", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
		},
		details: map[string]*github.CommitDetail{
			"tiny": {SHA: "tiny", LinesChanged: 1},
		},
	}
	pool := commitsPool(1)
	pool.GoalSpec.Commits.MinLinesPerCommit = 5
	adapter := NewCommitsAdapter(feed, nil, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), pool, testParticipant(), 1, inDay(2, time.Minute), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, result.Verdict)
	assert.Equal(t, []string{"rejected:tiny"}, result.ProofIDs)
}

func TestCommitsAdapter_DetailErrorFailsOpen(t *testing.T) {
	feed := &fakeFeed{
		commits: []github.Commit{
			{SHA: "aaa", Message: "rework config loading", Repo: "alice/proj", PushedAt: inDay(1, time.Hour)},
		},
		detailErr: errors.New("boom"),
	}
	pool := commitsPool(1)
	pool.GoalSpec.Commits.MinLinesPerCommit = 5
	adapter := NewCommitsAdapter(feed, nil, &fakeUsers{username: "alice"}, slog.Default())

	result, err := adapter.Verify(context.Background(), pool, testParticipant(), 1, inDay(1, 2*time.Hour), nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictPass, result.Verdict)
}

func TestCommitsAdapter_NoVerifiedIdentity(t *testing.T) {
	adapter := NewCommitsAdapter(&fakeFeed{}, nil, &fakeUsers{}, slog.Default())

	_, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, time.Hour), nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestCommitsAdapter_FeedErrors(t *testing.T) {
	adapter := NewCommitsAdapter(&fakeFeed{err: github.ErrRateLimited}, nil, &fakeUsers{username: "alice"}, slog.Default())
	_, err := adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, time.Hour), nil)
	assert.ErrorIs(t, err, ErrTransient)

	adapter = NewCommitsAdapter(&fakeFeed{err: github.ErrNotFound}, nil, &fakeUsers{username: "gone"}, slog.Default())
	_, err = adapter.Verify(context.Background(), commitsPool(1), testParticipant(), 1, inDay(1, time.Hour), nil)
	assert.ErrorIs(t, err, ErrConfig)
}
