package critic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"

	"github.com/pashonic/demoreel/src/report"
)

const (
	env_gemini_key      = "GEMINI_API_KEY"
	max_llm_screenshots = 3
	llm_warn_below      = 6
)

var scorePattern = regexp.MustCompile(`(?i)SCORE:\s*(\d+(?:\.\d+)?)`)

// GenerateFunc sends one user turn to a model and returns its text reply.
type GenerateFunc func(ctx context.Context, model string, contents []*genai.Content) (string, error)

type LLMCritic struct {
	Model    string
	Generate GenerateFunc
}

// NewLLMCritic connects to the Gemini API. It returns nil without error when
// GEMINI_API_KEY is not set so callers can skip the review.
func NewLLMCritic(ctx context.Context, model string) (*LLMCritic, error) {
	apiKey := os.Getenv(env_gemini_key)
	if apiKey == "" {
		log.Warn("LLM critic disabled", "reason", env_gemini_key+" not set")
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &LLMCritic{
		Model: model,
		Generate: func(ctx context.Context, model string, contents []*genai.Content) (string, error) {
			response, err := client.Models.GenerateContent(ctx, model, contents, nil)
			if err != nil {
				return "", err
			}
			return response.Text(), nil
		},
	}, nil
}

// Review asks the model to rate the reel from its metadata, narration and a
// few screenshots.
func (c *LLMCritic) Review(ctx context.Context, meta report.Metadata, narration string, screenshots []string) (*report.Feedback, error) {
	parts := []*genai.Part{genai.NewPartFromText(Prompt(meta, narration))}
	for _, path := range screenshots {
		if len(parts) > max_llm_screenshots {
			break
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Screenshot not sent to reviewer", "path", path, "err", err)
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
	}

	log.Info("Requesting LLM review", "model", c.Model, "screenshots", len(parts)-1)
	text, err := c.Generate(ctx, c.Model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)})
	if err != nil {
		return nil, fmt.Errorf("llm review: %w", err)
	}

	score, err := ParseScore(text)
	if err != nil {
		return nil, err
	}
	return &report.Feedback{Model: c.Model, Score: score, Feedback: strings.TrimSpace(text)}, nil
}

func Prompt(meta report.Metadata, narration string) string {
	var b strings.Builder
	b.WriteString("You review short product demo videos before they are published.\n")
	fmt.Fprintf(&b, "Video: %.1f seconds, %dx%d, %s", meta.DurationSec, meta.Width, meta.Height, meta.VideoCodec)
	if meta.AudioCodec != "" {
		fmt.Fprintf(&b, " with %s audio", meta.AudioCodec)
	}
	b.WriteString(".\n\nNarration:\n")
	b.WriteString(strings.TrimSpace(narration))
	b.WriteString("\n\nThe attached images are frames captured from the product.\n")
	b.WriteString("Answer with a first line \"SCORE: <0-10>\" followed by at most five short bullet points of feedback.")
	return b.String()
}

// ParseScore finds the SCORE line in a model reply and clamps it to 0-10.
func ParseScore(text string) (float64, error) {
	match := scorePattern.FindStringSubmatch(text)
	if match == nil {
		return 0, errors.New("no SCORE in model reply")
	}
	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, err
	}
	return min(score, 10), nil
}

// FeedbackCheck turns model feedback into a check. Low scores only warn.
func FeedbackCheck(feedback *report.Feedback) report.Check {
	check := report.Check{
		Name:     check_llm,
		Status:   report.StatusPass,
		Expected: fmt.Sprintf(">= %d/10", llm_warn_below),
		Actual:   fmt.Sprintf("%g/10", feedback.Score),
	}
	if feedback.Score < llm_warn_below {
		check.Status = report.StatusWarn
		check.Message = feedbackLine(feedback.Feedback)
	}
	return check
}

// feedbackLine returns the first non-empty line after the score line.
func feedbackLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for _, line := range lines[1:] {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
