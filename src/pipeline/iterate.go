package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pashonic/demoreel/src/report"
)

const (
	iterations_dir = "iterations"

	stage_capture    = "capture"
	stage_titlecards = "titlecards"
	stage_narrate    = "narrate"
	stage_assemble   = "assemble"
	stage_critic     = "critic"

	outcome_ok      = "ok"
	outcome_failed  = "failed"
	outcome_skipped = "skipped"
	outcome_reused  = "reused"
)

// Runner is the set of stages a full run goes through.
type Runner interface {
	Capture(ctx context.Context) error
	Titlecards(ctx context.Context) error
	Narrate(ctx context.Context) error
	Assemble(ctx context.Context) error
	Critic(ctx context.Context) (*report.Critic, error)
	Publish(ctx context.Context, rep *report.Critic) error
}

// Iterate runs every stage, then redoes capture, assembly and critic while the
// critic keeps failing and iterations remain. Title cards and narration are
// kept once they succeeded. Each pass leaves iterations/NN/summary.json in
// outputDir. A passing reel is published.
func Iterate(ctx context.Context, runner Runner, outputDir string, iterations int) (*report.Summary, error) {
	if iterations < 1 {
		iterations = 1
	}

	var summary *report.Summary
	var critic *report.Critic
	done := map[string]bool{}
	for iteration := 1; iteration <= iterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log.Info("Starting iteration", "iteration", iteration, "of", iterations)

		summary, critic = runIteration(ctx, runner, iteration, done)
		path := filepath.Join(outputDir, iterations_dir, fmt.Sprintf("%02d", iteration), report.SummaryFile)
		if err := report.Write(path, summary); err != nil {
			return summary, err
		}
		if summary.Passed {
			break
		}
		log.Warn("Iteration did not pass", "iteration", iteration, "score", summary.Score, "errors", len(summary.Errors))
	}

	if !summary.Passed {
		return summary, ErrCriticFailed
	}
	if err := runner.Publish(ctx, critic); err != nil {
		return summary, fmt.Errorf("publish: %w", err)
	}
	return summary, nil
}

func runIteration(ctx context.Context, runner Runner, iteration int, done map[string]bool) (*report.Summary, *report.Critic) {
	summary := &report.Summary{
		RunID:     report.NewRunID(),
		Iteration: iteration,
		StartedAt: time.Now(),
		Stages:    map[string]string{},
		Errors:    []string{},
	}
	defer func() { summary.FinishedAt = time.Now() }()

	stages := []struct {
		name string
		run  func(context.Context) error
		once bool
	}{
		{stage_capture, runner.Capture, false},
		{stage_titlecards, runner.Titlecards, true},
		{stage_narrate, runner.Narrate, true},
		{stage_assemble, runner.Assemble, false},
	}

	failed := false
	for _, stage := range stages {
		switch {
		case failed:
			summary.Stages[stage.name] = outcome_skipped
			continue
		case stage.once && done[stage.name]:
			summary.Stages[stage.name] = outcome_reused
			continue
		}

		err := stage.run(ctx)
		if err == nil {
			summary.Stages[stage.name] = outcome_ok
			done[stage.name] = true
			continue
		}
		log.Error("Stage failed", "stage", stage.name, "err", err)
		summary.Stages[stage.name] = outcome_failed
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", stage.name, err))

		// Narration problems leave a reel without voice-over, which the critic can still judge
		if stage.name != stage_narrate {
			failed = true
		}
	}

	if failed {
		summary.Stages[stage_critic] = outcome_skipped
		return summary, nil
	}

	critic, err := runner.Critic(ctx)
	if critic != nil {
		summary.Score = critic.Score
		summary.Passed = critic.Passed
	}
	switch {
	case err == nil:
		summary.Stages[stage_critic] = outcome_ok
	case errors.Is(err, ErrCriticFailed):
		summary.Stages[stage_critic] = outcome_failed
	default:
		log.Error("Stage failed", "stage", stage_critic, "err", err)
		summary.Stages[stage_critic] = outcome_failed
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", stage_critic, err))
		summary.Passed = false
	}
	return summary, critic
}
