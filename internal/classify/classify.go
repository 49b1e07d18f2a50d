// Package classify wraps the Gemini API for the two judgment calls the
// engine cannot make mechanically: whether a commit is filler, and what a
// screen-time screenshot actually shows.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrMalformedResponse means the model replied with something the engine
// cannot act on. Callers must not coerce it into a pass or a fail.
var ErrMalformedResponse = errors.New("classify: malformed model response")

// maxPatchBytes caps the diff sent to the commit judge. Oversized patches
// are truncated rather than rejected: a commit big enough to blow this
// budget is not filler.
const maxPatchBytes = 80_000

type Client struct {
	client          *genai.Client
	commitModel     string
	screenTimeModel string
}

func NewClient(ctx context.Context, apiKey, commitModel, screenTimeModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("classify: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: create client: %w", err)
	}

	return &Client{
		client:          client,
		commitModel:     commitModel,
		screenTimeModel: screenTimeModel,
	}, nil
}

const commitPrompt = `You review git commits for a habit-building challenge where participants must make real code commits daily.

Commit message:
%s

Diff (may be truncated):
%s

Is this commit NONSENSE - i.e. pure filler made only to game the daily requirement (whitespace-only churn, a meaningless README touch, random characters, reverting and re-applying the same change)?

Be LENIENT. Small but genuine changes (a real typo fix, a config tweak, a dependency bump, work-in-progress code) are NOT nonsense. Only flag commits with no plausible purpose at all.

Answer with exactly one word: NONSENSE or LEGITIMATE.`

// IsNonsense asks the commit judge whether a commit is pure filler. The
// judge is instructed to be lenient; only unambiguous garbage comes back
// true.
func (c *Client) IsNonsense(ctx context.Context, message, patch string) (bool, error) {
	if len(patch) > maxPatchBytes {
		patch = patch[:maxPatchBytes] + "\n... (truncated)"
	}

	prompt := fmt.Sprintf(commitPrompt, message, patch)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.commitModel, contents, nil)
	if err != nil {
		return false, fmt.Errorf("classify: commit judge: %w", err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(result.Text()))
	switch {
	case strings.Contains(verdict, "LEGITIMATE"):
		return false, nil
	case strings.Contains(verdict, "NONSENSE"):
		return true, nil
	default:
		return false, fmt.Errorf("%w: commit judge said %q", ErrMalformedResponse, verdict)
	}
}

// ScreenTimeReport is the structured reading of one screenshot.
type ScreenTimeReport struct {
	DateMatches bool    `json:"date_matches"`
	Hours       float64 `json:"hours"`
	BelowLimit  bool    `json:"below_limit"`
	Reason      string  `json:"reason"`
}

const screenTimePrompt = `You read phone screen-time summary screenshots for a challenge where participants must keep daily screen time under %.1f hours.

The screenshot should show a screen-time report for %s.

Respond with ONLY a JSON object, no other text:
{"date_matches": <true if the visible report date is %s>, "hours": <total screen time shown, as a decimal number of hours>, "below_limit": <true if hours is under %.1f>, "reason": "<one short sentence>"}

If the image is not a screen-time report, or the date or total is unreadable, set date_matches to false and explain in reason.`

// ReadScreenshot extracts the screen-time report from a screenshot. date is
// the civil date (YYYY-MM-DD) the report must cover.
func (c *Client) ReadScreenshot(ctx context.Context, image []byte, mimeType, date string, maxHours float64) (*ScreenTimeReport, error) {
	prompt := fmt.Sprintf(screenTimePrompt, maxHours, date, date, maxHours)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.screenTimeModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("classify: screenshot reader: %w", err)
	}

	report := &ScreenTimeReport{}
	raw := extractJSON(result.Text())
	if err := json.Unmarshal([]byte(raw), report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return report, nil
}

// extractJSON strips the markdown code fences models like to wrap JSON in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
