package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// GoalKind discriminates the goal family of a pool. The set is closed: a
// pool's goal is validated once at creation and never re-checked at read
// sites.
type GoalKind string

const (
	GoalDailyTrade    GoalKind = "daily_trade"
	GoalHodlToken     GoalKind = "hodl_token"
	GoalGitHubCommits GoalKind = "github_commits"
	GoalScreenTime    GoalKind = "screen_time"
)

var ErrInvalidGoalSpec = errors.New("invalid goal spec")

// TradeGoal requires a minimum number of on-chain transactions per challenge
// day.
type TradeGoal struct {
	TokenMint       string `json:"token_mint"`
	MinTradesPerDay int    `json:"min_trades_per_day"`
}

// HodlGoal requires a wallet to hold at least MinBalance of a token for the
// whole pool duration. Balance checks are point-in-time.
type HodlGoal struct {
	TokenMint  string `json:"token_mint"`
	MinBalance uint64 `json:"min_balance"`
}

// CommitsGoal requires daily GitHub commits from the participant's verified
// GitHub account. Repo is optional; empty means any public repo counts.
type CommitsGoal struct {
	Repo              string `json:"repo,omitempty"`
	MinCommitsPerDay  int    `json:"min_commits_per_day"`
	MinLinesPerCommit int    `json:"min_lines_per_commit,omitempty"`
}

// ScreenTimeGoal requires a daily screenshot proving total screen time below
// MaxHours.
type ScreenTimeGoal struct {
	MaxHours float64 `json:"max_hours"`
}

// GoalSpec is a tagged union over the four goal kinds. Exactly one of the
// payload pointers matching Kind is set.
type GoalSpec struct {
	Kind       GoalKind        `json:"kind"`
	Trade      *TradeGoal      `json:"trade,omitempty"`
	Hodl       *HodlGoal       `json:"hodl,omitempty"`
	Commits    *CommitsGoal    `json:"commits,omitempty"`
	ScreenTime *ScreenTimeGoal `json:"screen_time,omitempty"`
}

// Validate checks the union invariant and per-kind parameter ranges. It is
// called once when a pool is created.
func (g *GoalSpec) Validate() error {
	switch g.Kind {
	case GoalDailyTrade:
		if g.Trade == nil || g.Hodl != nil || g.Commits != nil || g.ScreenTime != nil {
			return fmt.Errorf("%w: %s payload mismatch", ErrInvalidGoalSpec, g.Kind)
		}
		if g.Trade.TokenMint == "" {
			return fmt.Errorf("%w: trade goal requires token_mint", ErrInvalidGoalSpec)
		}
		if g.Trade.MinTradesPerDay < 1 {
			return fmt.Errorf("%w: min_trades_per_day must be >= 1", ErrInvalidGoalSpec)
		}
	case GoalHodlToken:
		if g.Hodl == nil || g.Trade != nil || g.Commits != nil || g.ScreenTime != nil {
			return fmt.Errorf("%w: %s payload mismatch", ErrInvalidGoalSpec, g.Kind)
		}
		if g.Hodl.TokenMint == "" {
			return fmt.Errorf("%w: hodl goal requires token_mint", ErrInvalidGoalSpec)
		}
		if g.Hodl.MinBalance == 0 {
			return fmt.Errorf("%w: min_balance must be > 0", ErrInvalidGoalSpec)
		}
	case GoalGitHubCommits:
		if g.Commits == nil || g.Trade != nil || g.Hodl != nil || g.ScreenTime != nil {
			return fmt.Errorf("%w: %s payload mismatch", ErrInvalidGoalSpec, g.Kind)
		}
		if g.Commits.MinCommitsPerDay < 1 {
			return fmt.Errorf("%w: min_commits_per_day must be >= 1", ErrInvalidGoalSpec)
		}
		if g.Commits.MinLinesPerCommit < 0 {
			return fmt.Errorf("%w: min_lines_per_commit must be >= 0", ErrInvalidGoalSpec)
		}
	case GoalScreenTime:
		if g.ScreenTime == nil || g.Trade != nil || g.Hodl != nil || g.Commits != nil {
			return fmt.Errorf("%w: %s payload mismatch", ErrInvalidGoalSpec, g.Kind)
		}
		if g.ScreenTime.MaxHours <= 0 || g.ScreenTime.MaxHours > 12 {
			return fmt.Errorf("%w: max_hours must be in (0, 12], got %v", ErrInvalidGoalSpec, g.ScreenTime.MaxHours)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidGoalSpec, g.Kind)
	}
	return nil
}

// Lifestyle reports whether the goal is verified off-chain (commits, screen
// time) as opposed to the on-chain trade/hodl families.
func (g *GoalSpec) Lifestyle() bool {
	return g.Kind == GoalGitHubCommits || g.Kind == GoalScreenTime
}

// HabitName is the human-readable habit label carried in the on-chain
// lifestyle goal variant.
func (g *GoalSpec) HabitName() string {
	switch g.Kind {
	case GoalGitHubCommits:
		return "GitHub Commits"
	case GoalScreenTime:
		return fmt.Sprintf("Screen Time < %gh", g.ScreenTime.MaxHours)
	default:
		return ""
	}
}

// Value implements driver.Valuer so the union is stored as a JSON column.
func (g GoalSpec) Value() (driver.Value, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (g *GoalSpec) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	default:
		return fmt.Errorf("cannot scan %T into GoalSpec", src)
	}
}
