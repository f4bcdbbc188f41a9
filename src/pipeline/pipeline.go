// Package pipeline wires the stages together and keeps the on-disk layout of
// a run: each stage leaves a JSON report in the output directory that later
// stages (or later invocations) read back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/pashonic/demoreel/src/capture"
	"github.com/pashonic/demoreel/src/config"
	"github.com/pashonic/demoreel/src/critic"
	"github.com/pashonic/demoreel/src/narration"
	"github.com/pashonic/demoreel/src/report"
	"github.com/pashonic/demoreel/src/titlecard"
	"github.com/pashonic/demoreel/src/utils/s3upload"
	"github.com/pashonic/demoreel/src/utils/sendsns"
	"github.com/pashonic/demoreel/src/videobuilder"
	"github.com/pashonic/demoreel/src/videouploader"
)

const (
	capture_dir   = "capture"
	cards_dir     = "cards"
	narration_dir = "narration"
	reel_file     = "reel.mp4"
	engine_http   = "http"
)

// ErrCriticFailed marks a reel that was built but did not pass its checks.
var ErrCriticFailed = errors.New("critic checks failed")

// DriverCloser is a capture driver that owns a browser.
type DriverCloser interface {
	capture.Driver
	Close() error
}

type Pipeline struct {
	Conf *config.Config

	// NewDriver opens the browser for a capture run. Defaults to go-rod.
	NewDriver func(ctx context.Context, conf config.Capture) (DriverCloser, error)

	// NewEngine picks the TTS backend. Defaults to the configured engine.
	NewEngine func(conf config.Narration) narration.Engine

	timeline *config.TimelineDoc
}

func New(conf *config.Config) *Pipeline {
	return &Pipeline{
		Conf: conf,
		NewDriver: func(ctx context.Context, conf config.Capture) (DriverCloser, error) {
			return capture.NewRodDriver(ctx, conf)
		},
		NewEngine: defaultEngine,
	}
}

func defaultEngine(conf config.Narration) narration.Engine {
	if conf.Engine == engine_http {
		return narration.NewHTTPEngine(conf.HTTPURL, conf.Format)
	}
	return narration.NewCommandEngine(conf.Format)
}

func (p *Pipeline) path(parts ...string) string {
	return filepath.Join(append([]string{p.Conf.Project.OutputDir}, parts...)...)
}

// Capture runs the browser walkthrough and writes capture.json. The report is
// written even when the run aborts.
func (p *Pipeline) Capture(ctx context.Context) error {
	if err := p.Conf.ValidateCapture(); err != nil {
		return err
	}

	driver, err := p.NewDriver(ctx, p.Conf.Capture)
	if err != nil {
		return err
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Warn("Closing browser failed", "err", err)
		}
	}()

	rep, runErr := capture.Run(ctx, driver, p.Conf.Capture, capture.Options{
		OutputDir: p.path(capture_dir),
		Encoder:   videobuilder.FramesToVideo,
	})
	if err := report.Write(p.path(report.CaptureFile), rep); err != nil {
		return err
	}
	return runErr
}

// Titlecards renders every titlecard segment of the timeline.
func (p *Pipeline) Titlecards(ctx context.Context) error {
	timeline, err := p.loadTimeline()
	if err != nil {
		return err
	}
	doc := p.narrationDoc()
	style := titlecard.Style{
		Width:      p.Conf.Timeline.Width,
		Height:     p.Conf.Timeline.Height,
		FontFile:   p.Conf.Titlecards.FontFile,
		Background: p.Conf.Titlecards.Background,
		Foreground: p.Conf.Titlecards.Foreground,
		Size:       p.Conf.Titlecards.Size,
	}
	_, err = titlecard.RenderSegments(timeline, doc, style, p.path(cards_dir))
	return err
}

// Narrate synthesizes every scene, mixes the narration track and writes
// captions when enabled. Scene failures only show up in narration.json.
func (p *Pipeline) Narrate(ctx context.Context) error {
	if err := p.Conf.ValidateNarration(); err != nil {
		return err
	}
	doc, err := config.LoadNarration(p.Conf.Narration.File)
	if err != nil {
		return err
	}

	outputDir := p.path(narration_dir)
	rep, err := narration.Generate(ctx, p.NewEngine(p.Conf.Narration), doc, narration.Options{
		OutputDir: outputDir,
		Voice:     p.Conf.Narration.Voice,
	})
	if err != nil {
		return err
	}

	var errs []error
	if err := narration.BuildTrack(doc, rep, outputDir); err != nil {
		rep.Errors = append(rep.Errors, err.Error())
		errs = append(errs, err)
	}
	if p.Conf.Narration.Captions {
		captions, err := narration.WriteCaptions(doc, outputDir)
		if err != nil {
			rep.Errors = append(rep.Errors, err.Error())
			errs = append(errs, err)
		}
		rep.Captions = captions
	}
	if err := report.Write(p.path(report.NarrationFile), rep); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Assemble builds the reel from the timeline and the narration track left by
// an earlier narrate run, if any.
func (p *Pipeline) Assemble(ctx context.Context) error {
	if p.timeline == nil || hasUnrenderedCards(p.timeline) {
		if err := p.Titlecards(ctx); err != nil {
			return err
		}
	}

	opts := videobuilder.Options{
		Width:       p.Conf.Timeline.Width,
		Height:      p.Conf.Timeline.Height,
		FPS:         p.Conf.Timeline.FPS,
		Grade:       p.Conf.Timeline.Grade,
		Music:       p.Conf.Timeline.Music,
		MusicVolume: p.Conf.Timeline.MusicVolume,
		Narration:   p.narrationTrack(),
		Titles:      map[string]string{},
	}
	doc := p.narrationDoc()
	if doc != nil {
		for _, scene := range doc.Scenes {
			opts.Titles[scene.ID] = scene.Title
		}
	}

	video, err := videobuilder.Build(p.timeline, opts, p.path(reel_file))
	if err != nil {
		return err
	}
	if doc != nil && math.Abs(doc.TotalDuration()-video.DurationSec) > p.Conf.Critic.DurationToleranceSec {
		log.Warn("Narration and reel lengths differ", "narration", doc.TotalDuration(), "reel", video.DurationSec)
	}

	rep := report.Assembly{
		RunID:               report.NewRunID(),
		Output:              video.FilePath,
		ExpectedDurationSec: video.DurationSec,
		Clips:               []report.Clip{},
	}
	for _, clip := range video.Clips {
		rep.Clips = append(rep.Clips, report.Clip{Name: clip.Name, StartTimeSec: clip.StartTimeSec})
	}
	return report.Write(p.path(report.AssemblyFile), rep)
}

// Critic grades the assembled reel and writes critic.json. A reel that fails
// a check returns the report together with ErrCriticFailed.
func (p *Pipeline) Critic(ctx context.Context) (*report.Critic, error) {
	var assembly report.Assembly
	if err := report.Read(p.path(report.AssemblyFile), &assembly); err != nil {
		return nil, fmt.Errorf("no assembled reel: %w", err)
	}

	in := critic.Input{ExpectedDurationSec: assembly.ExpectedDurationSec}
	if in.ExpectedDurationSec == 0 {
		if timeline, err := p.loadTimeline(); err == nil {
			in.ExpectedDurationSec = timeline.ExpectedDuration()
		}
	}
	if doc := p.narrationDoc(); doc != nil {
		in.Text = doc.Text()
	}
	var capt report.Capture
	if err := report.Read(p.path(report.CaptureFile), &capt); err == nil {
		in.Screenshots = capt.Screenshots
	}

	var llm *critic.LLMCritic
	if p.Conf.Critic.LLM.Enabled {
		var err error
		if llm, err = critic.NewLLMCritic(ctx, p.Conf.Critic.LLM.Model); err != nil {
			log.Warn("LLM critic unavailable", "err", err)
		}
	}

	rep, err := critic.Review(ctx, assembly.Output, p.Conf.Critic, in, llm)
	if err != nil {
		return nil, err
	}
	if err := report.Write(p.path(report.CriticFile), rep); err != nil {
		return rep, err
	}
	if !rep.Passed {
		return rep, ErrCriticFailed
	}
	return rep, nil
}

// Publish uploads a passing reel, copies the artifacts to S3 and sends the
// alert. Each part is skipped when it is not configured.
func (p *Pipeline) Publish(ctx context.Context, rep *report.Critic) error {
	var assembly report.Assembly
	if err := report.Read(p.path(report.AssemblyFile), &assembly); err != nil {
		return err
	}
	message := fmt.Sprintf("%s reel built: %s (score %.0f)", p.Conf.Project.Name, assembly.Output, rep.Score)

	// Upload to youtube
	if p.Conf.Youtube.Enabled {
		video := videobuilder.OutputVideo{FilePath: assembly.Output, DurationSec: assembly.ExpectedDurationSec}
		for _, clip := range assembly.Clips {
			video.Clips = append(video.Clips, videobuilder.OutputClip{Name: clip.Name, StartTimeSec: clip.StartTimeSec})
		}
		link, err := videouploader.Upload(ctx, p.Conf.Youtube, video)
		if err != nil {
			return err
		}
		message = fmt.Sprintf("%s reel uploaded: %s (score %.0f)", p.Conf.Project.Name, link, rep.Score)
	}

	// Copy artifacts
	if _, err := s3upload.Upload(p.Conf.Notify.S3Bucket, p.Conf.Notify.S3Prefix, p.artifacts(assembly.Output)); err != nil {
		return err
	}

	// Send out alert
	return sendsns.SendSNS(p.Conf.Project.Name+" demo reel", message, p.Conf.Notify.SnsTopicArn)
}

func (p *Pipeline) artifacts(reel string) []string {
	files := []string{reel}
	for _, name := range []string{report.CaptureFile, report.NarrationFile, report.AssemblyFile, report.CriticFile} {
		if _, err := os.Stat(p.path(name)); err == nil {
			files = append(files, p.path(name))
		}
	}
	return files
}

func (p *Pipeline) loadTimeline() (*config.TimelineDoc, error) {
	if err := p.Conf.ValidateTimeline(); err != nil {
		return nil, err
	}
	timeline, err := config.LoadTimeline(p.Conf.Timeline.File)
	if err != nil {
		return nil, err
	}
	p.timeline = timeline
	return timeline, nil
}

// narrationDoc loads the narration document for titles and keyword text.
// Assembly works without one, so problems are only logged.
func (p *Pipeline) narrationDoc() *config.NarrationDoc {
	if p.Conf.Narration.File == "" {
		return nil
	}
	doc, err := config.LoadNarration(p.Conf.Narration.File)
	if err != nil {
		log.Warn("Narration document unavailable", "err", err)
		return nil
	}
	return doc
}

func (p *Pipeline) narrationTrack() string {
	var rep report.Narration
	if err := report.Read(p.path(report.NarrationFile), &rep); err != nil {
		log.Warn("Assembling without narration", "reason", err)
		return ""
	}
	if rep.Track == "" {
		log.Warn("Assembling without narration", "reason", "no narration track was built")
		return ""
	}
	return rep.Track
}

func hasUnrenderedCards(timeline *config.TimelineDoc) bool {
	for _, seg := range timeline.Segments {
		if seg.Kind == config.KindTitlecard && seg.Source == "" {
			return true
		}
	}
	return false
}
