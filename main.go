package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alexflint/go-arg"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/pashonic/demoreel/src/config"
	"github.com/pashonic/demoreel/src/logging"
	"github.com/pashonic/demoreel/src/pipeline"
	"github.com/pashonic/demoreel/src/report"
)

type captureCmd struct{}
type titlecardsCmd struct{}
type narrateCmd struct{}
type assembleCmd struct{}
type criticCmd struct{}
type uploadCmd struct{}

type runCmd struct {
	Iterations int `arg:"-n,--iterations" default:"1" help:"rebuild capture and reel until the critic passes, at most this many times"`
}

type args struct {
	Config   string `arg:"-c,--config" default:"config.toml" help:"pipeline config file"`
	LogLevel string `arg:"--log-level" help:"debug, info, warn or error (overrides logging.level)"`

	Capture    *captureCmd    `arg:"subcommand:capture" help:"walk the frontend and save screenshots and recording"`
	Titlecards *titlecardsCmd `arg:"subcommand:titlecards" help:"render title card images"`
	Narrate    *narrateCmd    `arg:"subcommand:narrate" help:"synthesize narration, track and captions"`
	Assemble   *assembleCmd   `arg:"subcommand:assemble" help:"build the reel from the timeline"`
	Critic     *criticCmd     `arg:"subcommand:critic" help:"check the reel and print a report"`
	Upload     *uploadCmd     `arg:"subcommand:upload" help:"publish the reel and send alerts"`
	Run        *runCmd        `arg:"subcommand:run" help:"run every stage"`
}

func (args) Description() string {
	return "demoreel builds narrated product demo videos from a running frontend"
}

func main() {
	var parsed args
	parser := arg.MustParse(&parsed)
	if parser.Subcommand() == nil {
		parser.Fail("missing subcommand")
	}

	// Pick up secrets from .env when present
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not read .env", "err", err)
	}

	// Load configuration
	conf, err := config.Load(parsed.Config)
	if err != nil {
		log.Fatal("Loading config failed", "path", parsed.Config, "err", err)
	}
	level := conf.Logging.Level
	if parsed.LogLevel != "" {
		level = parsed.LogLevel
	}
	logging.Setup(level)
	if err := conf.Validate(); err != nil {
		log.Fatal("Invalid config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, pipeline.New(conf), &parsed); err != nil {
		stop()
		log.Fatal("Stopped", "err", err)
	}
}

func run(ctx context.Context, p *pipeline.Pipeline, parsed *args) error {
	switch {
	case parsed.Capture != nil:
		return p.Capture(ctx)
	case parsed.Titlecards != nil:
		return p.Titlecards(ctx)
	case parsed.Narrate != nil:
		return p.Narrate(ctx)
	case parsed.Assemble != nil:
		return p.Assemble(ctx)
	case parsed.Critic != nil:
		rep, err := p.Critic(ctx)
		printCritic(rep)
		return err
	case parsed.Upload != nil:
		var rep report.Critic
		if err := report.Read(filepath.Join(p.Conf.Project.OutputDir, report.CriticFile), &rep); err != nil {
			return fmt.Errorf("run critic first: %w", err)
		}
		if !rep.Passed {
			return pipeline.ErrCriticFailed
		}
		return p.Publish(ctx, &rep)
	case parsed.Run != nil:
		summary, err := pipeline.Iterate(ctx, p, p.Conf.Project.OutputDir, parsed.Run.Iterations)
		if summary != nil {
			log.Info("Run finished", "iteration", summary.Iteration, "score", summary.Score, "passed", summary.Passed)
		}
		var rep report.Critic
		if report.Read(filepath.Join(p.Conf.Project.OutputDir, report.CriticFile), &rep) == nil {
			printCritic(&rep)
		}
		return err
	}
	return nil
}

func printCritic(rep *report.Critic) {
	if rep == nil {
		return
	}
	if err := report.Table(os.Stdout, rep.Checks); err != nil {
		log.Error("Printing report failed", "err", err)
	}
	pass, warn, fail := report.Counts(rep.Checks)
	fmt.Printf("\nscore %.0f/100  pass %d  warn %d  fail %d\n", rep.Score, pass, warn, fail)
	if rep.LLM != nil {
		fmt.Printf("\n%s review (%g/10):\n%s\n", rep.LLM.Model, rep.LLM.Score, rep.LLM.Feedback)
	}
}
