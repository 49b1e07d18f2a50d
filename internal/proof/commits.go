package proof

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/commitmentparties/engine/internal/github"
	"github.com/commitmentparties/engine/internal/model"
	"github.com/commitmentparties/engine/internal/repository"
	"github.com/commitmentparties/engine/internal/window"
)

// minMessageLength filters out empty and single-character commit messages
// before any classifier is consulted.
const minMessageLength = 5

// rejectedPrefix marks a proof id as classified-and-rejected, so a nonsense
// commit is never re-charged against the judge on a later tick.
const rejectedPrefix = "rejected:"

// CommitFeed is the slice of the GitHub client the adapter needs.
type CommitFeed interface {
	PushedCommits(ctx context.Context, username string) ([]github.Commit, error)
	CommitDetail(ctx context.Context, repo, sha string) (*github.CommitDetail, error)
}

// CommitJudge decides whether a commit is filler. A nil judge disables the
// quality check entirely.
type CommitJudge interface {
	IsNonsense(ctx context.Context, message, patch string) (bool, error)
}

// CommitsAdapter verifies daily GitHub commit goals against the user's
// public push events.
//
// The adapter fails open on judgment calls: if the line-count fetch or the
// nonsense classifier errors, the commit counts. Only the mechanical filters
// (window, repo, message length, dedupe) can exclude a commit outright.
type CommitsAdapter struct {
	feed  CommitFeed
	judge CommitJudge
	users repository.UserRepository
	log   *slog.Logger
}

func NewCommitsAdapter(feed CommitFeed, judge CommitJudge, users repository.UserRepository, log *slog.Logger) *CommitsAdapter {
	return &CommitsAdapter{feed: feed, judge: judge, users: users, log: log}
}

func (a *CommitsAdapter) Kind() string { return "github_commits" }

func (a *CommitsAdapter) Verify(ctx context.Context, pool *model.Pool, participant *model.Participant, day int, now time.Time, checked CheckedSet) (Result, error) {
	goal := pool.GoalSpec.Commits
	if goal == nil {
		return Result{}, fmt.Errorf("%w: pool %d has no commits goal", ErrConfig, pool.PoolID)
	}

	user, err := a.users.ByWallet(participant.WalletAddress)
	if err != nil {
		return Result{}, fmt.Errorf("%w: lookup %s: %v", ErrConfig, participant.WalletAddress, err)
	}
	if !user.VerifiedGitHubUsername.Valid || user.VerifiedGitHubUsername.String == "" {
		return Result{}, fmt.Errorf("%w: %s has no verified github identity", ErrConfig, participant.WalletAddress)
	}
	username := user.VerifiedGitHubUsername.String

	commits, err := a.feed.PushedCommits(ctx, username)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: github user %s: %v", ErrConfig, username, err)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	from, to := window.Day(pool.StartTimestamp, day)

	qualifying := 0
	var proofIDs []string
	seen := make(map[string]struct{})

	for _, commit := range commits {
		if commit.PushedAt.Before(from) || !commit.PushedAt.Before(to) {
			continue
		}
		if goal.Repo != "" && !strings.EqualFold(commit.Repo, goal.Repo) {
			continue
		}
		if len(strings.TrimSpace(commit.Message)) < minMessageLength {
			continue
		}
		if _, dup := seen[commit.SHA]; dup {
			continue
		}
		seen[commit.SHA] = struct{}{}

		if _, rejected := checked[rejectedPrefix+commit.SHA]; rejected {
			continue
		}
		if _, accepted := checked[commit.SHA]; accepted {
			qualifying++
			continue
		}

		if a.accept(ctx, goal, commit) {
			qualifying++
			proofIDs = append(proofIDs, commit.SHA)
		} else {
			proofIDs = append(proofIDs, rejectedPrefix+commit.SHA)
		}
	}

	result := Result{
		ProofIDs: proofIDs,
		Details: map[string]string{
			"github_username":    username,
			"qualifying_commits": strconv.Itoa(qualifying),
			"required_commits":   strconv.Itoa(goal.MinCommitsPerDay),
		},
	}

	switch {
	case qualifying >= goal.MinCommitsPerDay:
		result.Verdict = VerdictPass
	case window.Ended(pool.StartTimestamp, day, now):
		result.Verdict = VerdictFail
	default:
		result.Verdict = VerdictPending
	}
	return result, nil
}

// accept runs the per-commit quality checks, failing open on every error.
func (a *CommitsAdapter) accept(ctx context.Context, goal *model.CommitsGoal, commit github.Commit) bool {
	var patch string

	if goal.MinLinesPerCommit > 0 || a.judge != nil {
		detail, err := a.feed.CommitDetail(ctx, commit.Repo, commit.SHA)
		if err != nil {
			a.log.Warn("commit detail unavailable, accepting commit",
				"sha", commit.SHA, "repo", commit.Repo, "err", err)
			return true
		}
		if goal.MinLinesPerCommit > 0 && detail.LinesChanged < goal.MinLinesPerCommit {
			return false
		}
		patch = detail.Patch
	}

	if a.judge == nil {
		return true
	}

	nonsense, err := a.judge.IsNonsense(ctx, commit.Message, patch)
	if err != nil {
		a.log.Warn("commit judge unavailable, accepting commit", "sha", commit.SHA, "err", err)
		return true
	}
	return !nonsense
}
