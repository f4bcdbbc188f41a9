package videobuilder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashonic/demoreel/src/config"
)

func testOptions() Options {
	return Options{
		Width:  1280,
		Height: 720,
		FPS:    30,
		Titles: map[string]string{"intro": "Situational awareness"},
		Probe: func(path string) (float64, error) {
			if path == "clips/broken.mp4" {
				return 0, errors.New("moov atom not found")
			}
			return 9.5, nil
		},
	}
}

func TestGraph(t *testing.T) {
	timeline := &config.TimelineDoc{Segments: []config.Segment{
		{ID: "title", Kind: config.KindTitlecard, Source: "cards/intro.png", Duration: 4, Scene: "intro", Transition: config.TransitionFade, TransitionDuration: 0.5},
		{ID: "map", Kind: config.KindVideo, Source: "capture/capture.mp4", Duration: 12.5, Texts: []config.Text{{Text: "Live map: zone 3", X: "40", Y: "h-80", Size: 42}}},
		{ID: "walk", Kind: config.KindVideo, Source: "clips/walk.mp4"},
	}}
	opts := testOptions()
	opts.Grade = config.Grade{Contrast: 1.05, Saturation: 1.1}
	opts.Narration = "out/narration.wav"

	stream, video, err := Graph(timeline, opts, "out/reel.mp4")
	require.NoError(t, err)
	args := strings.Join(stream.GetArgs(), " ")

	// One input per segment plus narration
	assert.Equal(t, 4, strings.Count(args, "-i "))
	assert.Contains(t, args, "-i cards/intro.png")
	assert.Contains(t, args, "-loop 1")
	assert.Contains(t, args, "-t 12.5 -i capture/capture.mp4")
	assert.Contains(t, args, "-i clips/walk.mp4")

	// Filters
	assert.Contains(t, args, "scale=1280:720:force_original_aspect_ratio=decrease")
	assert.Contains(t, args, "pad=1280:720:(ow-iw)/2:(oh-ih)/2")
	assert.Contains(t, args, "fade=t=in:st=0:d=0.5")
	assert.Contains(t, args, "fade=t=out:st=3.5:d=0.5")
	assert.Contains(t, args, "drawtext=")
	assert.Contains(t, args, "Live map: zone 3")
	assert.Contains(t, args, "x=40:y=h-80:fontsize=42:fontcolor=white")
	assert.Contains(t, args, "concat=n=3")
	assert.Contains(t, args, "eq=contrast=1.05:saturation=1.1")
	assert.NotContains(t, args, "amix")

	// Output
	assert.Contains(t, args, "-c:a aac")
	assert.Contains(t, args, "-c:v libx264")
	assert.Contains(t, args, "-t 26")
	assert.Contains(t, args, "out/reel.mp4")

	assert.Equal(t, "out/reel.mp4", video.FilePath)
	assert.Equal(t, 26.0, video.DurationSec)
	assert.Equal(t, []OutputClip{
		{Name: "Situational awareness", StartTimeSec: 0},
		{Name: "map", StartTimeSec: 4},
		{Name: "walk", StartTimeSec: 16.5},
	}, video.Clips)
}

func TestGraphMusicMix(t *testing.T) {
	timeline := &config.TimelineDoc{Segments: []config.Segment{
		{ID: "a", Kind: config.KindImage, Source: "a.png", Duration: 3},
	}}
	opts := testOptions()
	opts.Narration = "narration.wav"
	opts.Music = "music.mp3"
	opts.MusicVolume = 0.15

	stream, _, err := Graph(timeline, opts, "reel.mp4")
	require.NoError(t, err)
	args := strings.Join(stream.GetArgs(), " ")
	assert.Contains(t, args, "-stream_loop -1 -i music.mp3")
	assert.Contains(t, args, "volume=0.15")
	assert.Contains(t, args, "amix=inputs=2:duration=first:dropout_transition=0")
	assert.NotContains(t, args, "eq=")

	// Music alone is used as is
	opts.Narration = ""
	stream, _, err = Graph(timeline, opts, "reel.mp4")
	require.NoError(t, err)
	args = strings.Join(stream.GetArgs(), " ")
	assert.NotContains(t, args, "amix")
	assert.Contains(t, args, "-c:a aac")

	// No audio at all
	opts.Music = ""
	stream, _, err = Graph(timeline, opts, "reel.mp4")
	require.NoError(t, err)
	assert.NotContains(t, strings.Join(stream.GetArgs(), " "), "-c:a")
}

func TestGraphFramesDuration(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 45; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf(FramePattern, i)), []byte("jpg"), 0644))
	}
	timeline := &config.TimelineDoc{Segments: []config.Segment{
		{ID: "rec", Kind: config.KindFrames, Source: dir},
		{ID: "still", Kind: config.KindImage, Source: "a.png", Duration: 2},
	}}

	stream, video, err := Graph(timeline, testOptions(), "reel.mp4")
	require.NoError(t, err)
	assert.Equal(t, 3.5, video.DurationSec)
	assert.Equal(t, 1.5, video.Clips[1].StartTimeSec)
	assert.Contains(t, strings.Join(stream.GetArgs(), " "), "-framerate 30 -i "+filepath.Join(dir, FramePattern))
}

func TestGraphFramesIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf(FramePattern, i)), []byte("jpg"), 0644))
	}
	for _, name := range []string{"notes.txt", ".DS_Store", "capture.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old"), 0755))

	_, video, err := Graph(&config.TimelineDoc{Segments: []config.Segment{
		{ID: "rec", Kind: config.KindFrames, Source: dir},
	}}, testOptions(), "reel.mp4")
	require.NoError(t, err)
	assert.Equal(t, 0.1, video.DurationSec)
}

func TestCountFrames(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "shot-%03d.png")
	for _, i := range []int{1, 2, 3, 4, 7} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("shot-%03d.png", i)), []byte("png"), 0644))
	}

	// Sequence starts at 1 and stops at the first gap
	count, err := countFrames(pattern)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	_, err = countFrames(filepath.Join(dir, FramePattern))
	assert.ErrorContains(t, err, "no frames match")
}

func TestGraphFadeFitsShortClip(t *testing.T) {
	opts := testOptions()
	opts.Probe = func(path string) (float64, error) { return 0.3, nil }

	stream, video, err := Graph(&config.TimelineDoc{Segments: []config.Segment{
		{ID: "blink", Kind: config.KindVideo, Source: "clips/blink.mp4", Transition: config.TransitionFade, TransitionDuration: 0.5},
	}}, opts, "reel.mp4")
	require.NoError(t, err)
	args := strings.Join(stream.GetArgs(), " ")
	assert.Contains(t, args, "fade=t=in:st=0:d=0.15")
	assert.Contains(t, args, "fade=t=out:st=0.15:d=0.15")
	assert.NotContains(t, args, "st=-")
	assert.Equal(t, 0.3, video.DurationSec)

	// Long enough clips keep the configured fade
	opts.Probe = func(path string) (float64, error) { return 6, nil }
	stream, _, err = Graph(&config.TimelineDoc{Segments: []config.Segment{
		{ID: "walk", Kind: config.KindVideo, Source: "clips/walk.mp4", Transition: config.TransitionFade, TransitionDuration: 0.5},
	}}, opts, "reel.mp4")
	require.NoError(t, err)
	assert.Contains(t, strings.Join(stream.GetArgs(), " "), "fade=t=out:st=5.5:d=0.5")
}

func TestGraphErrors(t *testing.T) {
	_, _, err := Graph(&config.TimelineDoc{}, testOptions(), "reel.mp4")
	assert.Error(t, err)

	_, _, err = Graph(&config.TimelineDoc{Segments: []config.Segment{
		{ID: "bad", Kind: config.KindVideo, Source: "clips/broken.mp4"},
	}}, testOptions(), "reel.mp4")
	assert.ErrorContains(t, err, "moov atom")

	_, _, err = Graph(&config.TimelineDoc{Segments: []config.Segment{
		{ID: "card", Kind: config.KindTitlecard, Duration: 3},
	}}, testOptions(), "reel.mp4")
	assert.ErrorContains(t, err, "segment card")

	_, _, err = Graph(&config.TimelineDoc{Segments: []config.Segment{
		{ID: "x", Kind: "gif", Source: "x.gif"},
	}}, testOptions(), "reel.mp4")
	assert.ErrorContains(t, err, "unsupported")
}

func TestEscapeText(t *testing.T) {
	assert.Equal(t, "Shelters: 12 open", escapeText("Shelters: 12 open"))
	assert.Equal(t, "It’s 100％ a/b", escapeText(`It's 100% a\b`))
}
