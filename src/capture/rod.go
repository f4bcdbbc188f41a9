package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/rod/lib/utils"

	"github.com/pashonic/demoreel/src/config"
)

const screencast_quality = 85

// RodDriver controls a Chromium instance over the DevTools protocol.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	fps      int

	mu         sync.Mutex
	frames     []screencastFrame
	framesDir  string
	stopFrames context.CancelFunc
	framesDone chan struct{}
}

// NewRodDriver launches (or downloads) a browser and opens a blank page with
// the configured viewport.
func NewRodDriver(ctx context.Context, conf config.Capture) (*RodDriver, error) {
	l := launcher.New().Headless(!conf.ShowBrowser)
	if conf.BrowserBin != "" {
		l = l.Bin(conf.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             conf.Width,
		Height:            conf.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return &RodDriver{
		launcher: l,
		browser:  browser,
		page:     page,
		timeout:  time.Duration(conf.TimeoutSec) * time.Second,
		fps:      conf.FPS,
	}, nil
}

func (d *RodDriver) Navigate(url string) error {
	page := d.page.Timeout(d.timeout)
	defer page.CancelTimeout()
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (d *RodDriver) element(selector string) (*rod.Element, func(), error) {
	if selector == "" {
		return nil, nil, errors.New("selector is required")
	}
	page := d.page.Timeout(d.timeout)
	el, err := page.Element(selector)
	if err != nil {
		page.CancelTimeout()
		return nil, nil, err
	}
	return el, func() { page.CancelTimeout() }, nil
}

func (d *RodDriver) WaitFor(selector string) error {
	el, done, err := d.element(selector)
	if err != nil {
		return err
	}
	defer done()
	return el.WaitVisible()
}

func (d *RodDriver) Click(selector string) error {
	el, done, err := d.element(selector)
	if err != nil {
		return err
	}
	defer done()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *RodDriver) Hover(selector string) error {
	el, done, err := d.element(selector)
	if err != nil {
		return err
	}
	defer done()
	return el.Hover()
}

func (d *RodDriver) Type(selector, text string) error {
	el, done, err := d.element(selector)
	if err != nil {
		return err
	}
	defer done()
	return el.Input(text)
}

func (d *RodDriver) Scroll(dx, dy float64) error {
	return d.page.Mouse.Scroll(dx, dy, 8)
}

func (d *RodDriver) Screenshot(path string) error {
	data, err := d.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return err
	}
	return utils.OutputFile(path, data)
}

// StartRecording collects screencast frames with their timestamps until
// StopRecording writes them to dir.
func (d *RodDriver) StartRecording(dir string) error {
	d.mu.Lock()
	if d.stopFrames != nil {
		d.mu.Unlock()
		return errors.New("recording already running")
	}
	ctx, cancel := context.WithCancel(d.page.GetContext())
	d.frames = nil
	d.framesDir = dir
	d.stopFrames = cancel
	d.framesDone = make(chan struct{})
	d.mu.Unlock()

	wait := d.page.Context(ctx).EachEvent(func(e *proto.PageScreencastFrame) {
		if err := (proto.PageScreencastFrameAck{SessionID: e.SessionID}).Call(d.page); err != nil {
			log.Debug("Screencast ack failed", "err", err)
		}
		at := time.Now()
		if e.Metadata != nil && e.Metadata.Timestamp != 0 {
			at = e.Metadata.Timestamp.Time()
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if len(d.frames) >= max_video_frames {
			log.Debug("Dropping screencast frame", "reason", "too many frames")
			return
		}
		d.frames = append(d.frames, screencastFrame{data: e.Data, at: at})
	})
	go func() {
		defer close(d.framesDone)
		wait()
	}()

	quality := screencast_quality
	everyNthFrame := 1
	err := proto.PageStartScreencast{
		Format:        proto.PageStartScreencastFormatJpeg,
		Quality:       &quality,
		EveryNthFrame: &everyNthFrame,
	}.Call(d.page)
	if err != nil {
		d.stopListener()
		return err
	}
	return nil
}

// StopRecording ends the screencast and writes the frames resampled to the
// configured fps, holding the last frame until now.
func (d *RodDriver) StopRecording() (int, error) {
	err := proto.PageStopScreencast{}.Call(d.page)
	stop := time.Now()
	d.stopListener()

	d.mu.Lock()
	frames, dir := d.frames, d.framesDir
	d.frames = nil
	d.mu.Unlock()

	count, writeErr := writeFrames(dir, frames, stop, d.fps)
	return count, errors.Join(err, writeErr)
}

func (d *RodDriver) stopListener() {
	d.mu.Lock()
	cancel, done := d.stopFrames, d.framesDone
	d.stopFrames = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *RodDriver) Close() error {
	d.stopListener()
	err := d.browser.Close()
	d.launcher.Kill()
	return err
}
