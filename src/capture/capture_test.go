package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashonic/demoreel/src/config"
)

type fakeDriver struct {
	calls       []string
	missing     map[string]bool
	navigateErr error
	frames      int
	recordDir   string
}

func (f *fakeDriver) find(call, selector string) error {
	f.calls = append(f.calls, call+" "+selector)
	if f.missing[selector] {
		return errors.New("element not found")
	}
	return nil
}

func (f *fakeDriver) Navigate(url string) error {
	f.calls = append(f.calls, "navigate "+url)
	return f.navigateErr
}
func (f *fakeDriver) WaitFor(selector string) error { return f.find("wait_for", selector) }
func (f *fakeDriver) Click(selector string) error   { return f.find("click", selector) }
func (f *fakeDriver) Hover(selector string) error   { return f.find("hover", selector) }
func (f *fakeDriver) Type(selector, text string) error {
	return f.find("type", selector)
}
func (f *fakeDriver) Scroll(dx, dy float64) error {
	f.calls = append(f.calls, "scroll")
	return nil
}
func (f *fakeDriver) Screenshot(path string) error {
	f.calls = append(f.calls, "screenshot "+filepath.Base(path))
	return os.WriteFile(path, []byte("png"), 0644)
}
func (f *fakeDriver) StartRecording(dir string) error {
	f.calls = append(f.calls, "record_start")
	f.recordDir = dir
	return nil
}
func (f *fakeDriver) StopRecording() (int, error) {
	f.calls = append(f.calls, "record_stop")
	return f.frames, nil
}

func baseConf(actions ...config.Action) config.Capture {
	return config.Capture{
		URL:          "http://localhost:3000",
		RootSelector: "#root",
		FPS:          30,
		Actions:      actions,
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	driver := &fakeDriver{missing: map[string]bool{"#broken": true}}
	var slept time.Duration
	conf := baseConf(
		config.Action{Type: "click", Selector: "#broken"},
		config.Action{Type: "hover", Selector: "#legend"},
		config.Action{Type: "wait", WaitMs: 250},
		config.Action{Type: "screenshot", Name: "Legend open!"},
		config.Action{Type: "teleport"},
	)

	out := t.TempDir()
	rep, err := Run(context.Background(), driver, conf, Options{
		OutputDir: out,
		Sleep:     func(d time.Duration) { slept += d },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"navigate http://localhost:3000",
		"wait_for #root",
		"click #broken",
		"hover #legend",
		"screenshot 003-Legend-open.png",
	}, driver.calls)
	assert.Equal(t, 250*time.Millisecond, slept)

	require.Len(t, rep.Steps, 5)
	assert.False(t, rep.Steps[0].OK)
	assert.Equal(t, "element not found", rep.Steps[0].Error)
	assert.True(t, rep.Steps[1].OK)
	assert.True(t, rep.Steps[3].OK)
	assert.Equal(t, filepath.Join(out, "shots", "003-Legend-open.png"), rep.Steps[3].Artifact)
	assert.False(t, rep.Steps[4].OK)
	assert.Contains(t, rep.Steps[4].Error, "unknown action type")

	assert.Len(t, rep.Errors, 2)
	assert.Equal(t, []string{filepath.Join(out, "shots", "003-Legend-open.png")}, rep.Screenshots)
	assert.FileExists(t, rep.Screenshots[0])
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
}

func TestRunTakesFinalScreenshot(t *testing.T) {
	driver := &fakeDriver{}
	out := t.TempDir()
	rep, err := Run(context.Background(), driver, baseConf(config.Action{Type: "scroll", Dy: 400}), Options{OutputDir: out})
	require.NoError(t, err)

	require.Len(t, rep.Screenshots, 1)
	assert.Equal(t, filepath.Join(out, "shots", "001-final.png"), rep.Screenshots[0])
	assert.Equal(t, "screenshot 001-final.png", driver.calls[len(driver.calls)-1])
}

func TestRunAbortsWithoutRoot(t *testing.T) {
	driver := &fakeDriver{missing: map[string]bool{"#root": true}}
	rep, err := Run(context.Background(), driver, baseConf(config.Action{Type: "click", Selector: "#a"}), Options{OutputDir: t.TempDir()})

	assert.ErrorIs(t, err, ErrRootNotFound)
	assert.Empty(t, rep.Steps)
	assert.Len(t, rep.Errors, 1)
}

func TestRunAbortsWhenUnreachable(t *testing.T) {
	driver := &fakeDriver{navigateErr: errors.New("connection refused")}
	_, err := Run(context.Background(), driver, baseConf(), Options{OutputDir: t.TempDir()})
	assert.ErrorContains(t, err, "connection refused")
	assert.Len(t, driver.calls, 1)
}

func TestRunRecordsVideo(t *testing.T) {
	driver := &fakeDriver{frames: 42}
	out := t.TempDir()
	var encodedFrom, encodedTo string
	var encodedFPS int

	conf := baseConf(config.Action{Type: "screenshot"})
	conf.Record = true
	rep, err := Run(context.Background(), driver, conf, Options{
		OutputDir: out,
		Encoder: func(framesDir string, fps int, output string) error {
			encodedFrom, encodedFPS, encodedTo = framesDir, fps, output
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "record_start", driver.calls[2])
	assert.Equal(t, "record_stop", driver.calls[len(driver.calls)-1])
	assert.Equal(t, filepath.Join(out, "frames"), encodedFrom)
	assert.Equal(t, filepath.Join(out, "frames"), driver.recordDir)
	assert.DirExists(t, driver.recordDir)
	assert.Equal(t, 30, encodedFPS)
	assert.Equal(t, filepath.Join(out, "capture.mp4"), encodedTo)
	assert.Equal(t, encodedTo, rep.Video)
	assert.Empty(t, rep.Errors)
}

func TestRunRecordActions(t *testing.T) {
	driver := &fakeDriver{frames: 0}
	conf := baseConf(
		config.Action{Type: "record_stop"},
		config.Action{Type: "record_start"},
		config.Action{Type: "record_start"},
		config.Action{Type: "screenshot"},
		config.Action{Type: "record_stop"},
	)
	rep, err := Run(context.Background(), driver, conf, Options{OutputDir: t.TempDir()})
	require.NoError(t, err)

	assert.False(t, rep.Steps[0].OK)
	assert.True(t, rep.Steps[1].OK)
	assert.False(t, rep.Steps[2].OK)
	assert.True(t, rep.Steps[3].OK)
	// zero frames counts as a failed recording
	assert.False(t, rep.Steps[4].OK)
	assert.True(t, strings.Contains(rep.Steps[4].Error, "no frames"))
	assert.Empty(t, rep.Video)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	driver := &fakeDriver{}
	rep, err := Run(ctx, driver, baseConf(config.Action{Type: "click", Selector: "#a"}), Options{OutputDir: t.TempDir()})
	require.NoError(t, err)

	assert.NotContains(t, driver.calls, "click #a")
	assert.Contains(t, rep.Errors[0], "cancelled")
	// the fallback screenshot still runs
	assert.Len(t, rep.Screenshots, 1)
}

func TestShotPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "shots", "007.png"), ShotPath("out", 7, ""))
	assert.Equal(t, filepath.Join("out", "shots", "012-map-view.png"), ShotPath("out", 12, " map view "))
	assert.Equal(t, filepath.Join("out", "shots", "000-a_b.png"), ShotPath("out", 0, "a_b/../"))
}
