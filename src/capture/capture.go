// Package capture drives a browser through a scripted list of UI actions and
// saves screenshots and screencast video of the walkthrough.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pashonic/demoreel/src/config"
	"github.com/pashonic/demoreel/src/report"
	"github.com/pashonic/demoreel/src/utils/safename"
)

const (
	shots_dir         = "shots"
	frames_dir        = "frames"
	video_file        = "capture.mp4"
	final_shot_name   = "final"
	default_wait_time = 500 * time.Millisecond
)

// ErrRootNotFound aborts a run: nothing else can work without the app shell.
var ErrRootNotFound = errors.New("root selector never appeared")

// Driver is the subset of browser control a capture run needs.
type Driver interface {
	Navigate(url string) error
	WaitFor(selector string) error
	Click(selector string) error
	Hover(selector string) error
	Type(selector, text string) error
	Scroll(dx, dy float64) error
	Screenshot(path string) error
	StartRecording(dir string) error
	StopRecording() (int, error)
}

// Encoder turns a directory of screencast frames into a video file.
type Encoder func(framesDir string, fps int, outputFilePath string) error

type Options struct {
	OutputDir string
	Encoder   Encoder
	Sleep     func(time.Duration)
}

type runner struct {
	driver    Driver
	conf      config.Capture
	opts      Options
	report    *report.Capture
	recording bool
	shots     int
}

// Run executes the configured actions. Only a missing root selector (or an
// unreachable URL) aborts; every other failure is logged, recorded and the
// next action runs.
func Run(ctx context.Context, driver Driver, conf config.Capture, opts Options) (*report.Capture, error) {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	r := &runner{
		driver: driver,
		conf:   conf,
		opts:   opts,
		report: &report.Capture{
			RunID:       report.NewRunID(),
			URL:         conf.URL,
			StartedAt:   time.Now(),
			Steps:       []report.Step{},
			Screenshots: []string{},
			Errors:      []string{},
		},
	}
	defer func() { r.report.FinishedAt = time.Now() }()

	// Make sure output directory exists
	if err := os.MkdirAll(filepath.Join(opts.OutputDir, shots_dir), os.ModePerm); err != nil {
		return r.report, err
	}

	// Open app and wait for its shell
	log.Info("Opening frontend", "url", conf.URL)
	if err := driver.Navigate(conf.URL); err != nil {
		r.fail(fmt.Sprintf("navigate %s: %v", conf.URL, err))
		return r.report, fmt.Errorf("navigate %s: %w", conf.URL, err)
	}
	if err := driver.WaitFor(conf.RootSelector); err != nil {
		r.fail(fmt.Sprintf("wait for %s: %v", conf.RootSelector, err))
		return r.report, fmt.Errorf("%w: %s: %v", ErrRootNotFound, conf.RootSelector, err)
	}

	if conf.Record {
		if err := r.startRecording(); err != nil {
			r.fail(fmt.Sprintf("start recording: %v", err))
		}
	}

	// Scripted actions
	for index, action := range conf.Actions {
		if err := ctx.Err(); err != nil {
			r.fail(fmt.Sprintf("cancelled before action %d: %v", index, err))
			break
		}
		r.step(index, action)
	}

	// Always leave at least one screenshot behind
	if r.shots == 0 {
		r.step(len(conf.Actions), config.Action{Type: "screenshot", Name: final_shot_name})
	}

	if r.recording {
		if err := r.stopRecording(); err != nil {
			r.fail(fmt.Sprintf("stop recording: %v", err))
		}
	}

	log.Info("Capture finished", "steps", len(r.report.Steps), "screenshots", len(r.report.Screenshots), "errors", len(r.report.Errors))
	return r.report, nil
}

func (r *runner) step(index int, action config.Action) {
	started := time.Now()
	step := report.Step{
		Index:    index,
		Type:     action.Type,
		Selector: action.Selector,
		Name:     action.Name,
	}

	artifact, err := r.perform(index, action)
	step.ElapsedMs = time.Since(started).Milliseconds()
	step.Artifact = artifact
	if err != nil {
		step.Error = err.Error()
		r.fail(fmt.Sprintf("action %d (%s): %v", index, action.Type, err))
	} else {
		step.OK = true
		log.Debug("Action done", "index", index, "type", action.Type, "selector", action.Selector)
	}
	r.report.Steps = append(r.report.Steps, step)
}

func (r *runner) perform(index int, action config.Action) (string, error) {
	switch strings.ToLower(action.Type) {
	case "click":
		return "", r.driver.Click(action.Selector)
	case "hover":
		return "", r.driver.Hover(action.Selector)
	case "type":
		return "", r.driver.Type(action.Selector, action.Text)
	case "wait":
		wait := time.Duration(action.WaitMs) * time.Millisecond
		if wait <= 0 {
			wait = default_wait_time
		}
		r.opts.Sleep(wait)
		return "", nil
	case "wait_for":
		return "", r.driver.WaitFor(action.Selector)
	case "scroll":
		return "", r.driver.Scroll(action.Dx, action.Dy)
	case "navigate":
		return "", r.driver.Navigate(action.Text)
	case "screenshot":
		path := ShotPath(r.opts.OutputDir, index, action.Name)
		if err := r.driver.Screenshot(path); err != nil {
			return "", err
		}
		r.shots++
		r.report.Screenshots = append(r.report.Screenshots, path)
		log.Info("Saving screenshot", "path", path)
		return path, nil
	case "record_start":
		if r.recording {
			return "", errors.New("recording already running")
		}
		return "", r.startRecording()
	case "record_stop":
		if !r.recording {
			return "", errors.New("recording not running")
		}
		if err := r.stopRecording(); err != nil {
			return "", err
		}
		return r.report.Video, nil
	default:
		return "", fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (r *runner) startRecording() error {
	dir := filepath.Join(r.opts.OutputDir, frames_dir)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	if err := r.driver.StartRecording(dir); err != nil {
		return err
	}
	r.recording = true
	log.Info("Recording started", "frames", dir)
	return nil
}

func (r *runner) stopRecording() error {
	r.recording = false
	frames, err := r.driver.StopRecording()
	if err != nil {
		return err
	}
	if frames == 0 {
		return errors.New("recording produced no frames")
	}
	if r.opts.Encoder == nil {
		return nil
	}

	// Encode frames to video
	output := filepath.Join(r.opts.OutputDir, video_file)
	if err := r.opts.Encoder(filepath.Join(r.opts.OutputDir, frames_dir), r.conf.FPS, output); err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	r.report.Video = output
	log.Info("Recording saved", "path", output, "frames", frames)
	return nil
}

func (r *runner) fail(message string) {
	log.Error(message)
	r.report.Errors = append(r.report.Errors, message)
}

// ShotPath names a screenshot after its action index and optional label.
func ShotPath(outputDir string, index int, name string) string {
	name = safename.Clean(name)
	if name == "" {
		return filepath.Join(outputDir, shots_dir, fmt.Sprintf("%03d.png", index))
	}
	return filepath.Join(outputDir, shots_dir, fmt.Sprintf("%03d-%s.png", index, name))
}
