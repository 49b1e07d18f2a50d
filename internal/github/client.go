// Package github is a minimal client for the two GitHub REST reads the
// engine needs: a user's recent public push events and a single commit's
// stats and patch.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.github.com"

var (
	// ErrNotFound means the user or commit does not exist (or is private).
	ErrNotFound = errors.New("github: not found")

	// ErrRateLimited means GitHub refused the request for quota reasons.
	// Distinct from other failures so callers can back off without alarm.
	ErrRateLimited = errors.New("github: rate limited")
)

// Commit is one commit observed in a push event. PushedAt is the event
// timestamp, which is what admissibility windows compare against.
type Commit struct {
	SHA      string
	Message  string
	Repo     string // owner/name
	PushedAt time.Time
}

// CommitDetail is the full commit record with line stats and patch text.
type CommitDetail struct {
	SHA          string
	Message      string
	LinesChanged int
	Patch        string
}

type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a client. An empty token gives unauthenticated access
// with GitHub's much lower rate limits.
func NewClient(token string) *Client {
	httpClient := http.DefaultClient
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	return &Client{http: httpClient, baseURL: defaultBaseURL}
}

type eventPayload struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload struct {
		Commits []struct {
			SHA     string `json:"sha"`
			Message string `json:"message"`
		} `json:"commits"`
	} `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// PushedCommits lists the commits in the user's recent public push events,
// newest first. GitHub keeps roughly the last 90 days / 300 events, far more
// than a challenge day needs.
func (c *Client) PushedCommits(ctx context.Context, username string) ([]Commit, error) {
	var events []eventPayload
	path := fmt.Sprintf("/users/%s/events/public?per_page=100", url.PathEscape(username))
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}

	var out []Commit
	for _, ev := range events {
		if ev.Type != "PushEvent" {
			continue
		}
		for _, commit := range ev.Payload.Commits {
			out = append(out, Commit{
				SHA:      commit.SHA,
				Message:  commit.Message,
				Repo:     ev.Repo.Name,
				PushedAt: ev.CreatedAt,
			})
		}
	}
	return out, nil
}

type commitPayload struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
	} `json:"commit"`
	Stats struct {
		Total int `json:"total"`
	} `json:"stats"`
	Files []struct {
		Patch string `json:"patch"`
	} `json:"files"`
}

// CommitDetail fetches one commit's stats and patch. repo is owner/name.
func (c *Client) CommitDetail(ctx context.Context, repo, sha string) (*CommitDetail, error) {
	var payload commitPayload
	path := fmt.Sprintf("/repos/%s/commits/%s", repo, url.PathEscape(sha))
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}

	var patch strings.Builder
	for _, f := range payload.Files {
		patch.WriteString(f.Patch)
		patch.WriteString("\n")
	}

	return &CommitDetail{
		SHA:          payload.SHA,
		Message:      payload.Commit.Message,
		LinesChanged: payload.Stats.Total,
		Patch:        patch.String(),
	}, nil
}

// UserLogin resolves the authenticated user's login for an OAuth token.
func UserLogin(ctx context.Context, httpClient *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, defaultBaseURL+"/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("github: get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github: get user: status %d", resp.StatusCode)
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("github: decode user: %w", err)
	}
	return user.Login, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github: %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case http.StatusForbidden, http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, path)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github: %s: status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decode %s: %w", path, err)
	}
	return nil
}
