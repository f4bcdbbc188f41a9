package videobuilder

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/pashonic/demoreel/src/config"
)

// FramePattern is the numbering screencast frames are saved with.
const FramePattern = "%05d.jpg"

const (
	default_text_size  = 36
	default_text_color = "white"

	// image2 looks for the first frame among these indexes
	max_start_number = 4
)

type Options struct {
	Width       int
	Height      int
	FPS         int
	Grade       config.Grade
	Narration   string
	Music       string
	MusicVolume float64

	// Titles maps narration scene ids to chapter names.
	Titles map[string]string

	// Probe reports a media file's duration in seconds. Defaults to ffprobe.
	Probe func(path string) (float64, error)
}

type OutputClip struct {
	Name         string
	StartTimeSec float64
}

type OutputVideo struct {
	FilePath    string
	Clips       []OutputClip
	DurationSec float64
}

// Build encodes the timeline into outputFilePath. There is no partial output:
// a failed ffmpeg run means the whole reel has to be built again.
func Build(timeline *config.TimelineDoc, opts Options, outputFilePath string) (OutputVideo, error) {

	// Make sure output directory exists
	if err := os.MkdirAll(filepath.Dir(outputFilePath), os.ModePerm); err != nil {
		return OutputVideo{}, err
	}

	stream, video, err := Graph(timeline, opts, outputFilePath)
	if err != nil {
		return OutputVideo{}, err
	}
	log.Info("Encoding reel", "segments", len(timeline.Segments), "duration", video.DurationSec, "output", outputFilePath)
	if err := stream.Run(); err != nil {
		return OutputVideo{}, fmt.Errorf("ffmpeg assemble: %w", err)
	}
	return video, nil
}

// Graph builds the ffmpeg filter graph for a timeline without running it.
func Graph(timeline *config.TimelineDoc, opts Options, outputFilePath string) (*ffmpeg.Stream, OutputVideo, error) {
	video := OutputVideo{FilePath: outputFilePath}
	if len(timeline.Segments) == 0 {
		return nil, video, errors.New("timeline has no segments")
	}
	if opts.Probe == nil {
		opts.Probe = ProbeDuration
	}

	// Add segments to input stream
	var streamInputs []*ffmpeg.Stream
	currentTimeSec := 0.0
	for _, seg := range timeline.Segments {
		streamInput, duration, err := segmentInput(seg, opts)
		if err != nil {
			return nil, video, fmt.Errorf("segment %s: %w", seg.ID, err)
		}

		// Normalize size, aspect and rate so concat accepts every segment
		streamInput = streamInput.
			Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", opts.Width, opts.Height), "force_original_aspect_ratio=decrease"}).
			Filter("pad", ffmpeg.Args{fmt.Sprintf("%d:%d", opts.Width, opts.Height), "(ow-iw)/2", "(oh-ih)/2"}).
			Filter("setsar", ffmpeg.Args{"1"}).
			Filter("fps", ffmpeg.Args{fmt.Sprintf("%d", opts.FPS)})

		// Apply transition
		if seg.Transition == config.TransitionFade && seg.TransitionDuration > 0 {
			fade := fadeDuration(seg, duration)
			streamInput = streamInput.Filter("fade", ffmpeg.Args{"t=in", "st=0", fmt.Sprintf("d=%v", fade)})
			streamInput = streamInput.Filter("fade", ffmpeg.Args{"t=out", fmt.Sprintf("st=%v", round(duration-fade)), fmt.Sprintf("d=%v", fade)})
		}

		// Apply text overlays if specified
		for _, text := range seg.Texts {
			streamInput = streamInput.Filter("drawtext", drawtextArgs(text))
		}
		streamInputs = append(streamInputs, streamInput)

		// Store return clip
		video.Clips = append(video.Clips, OutputClip{
			Name:         clipName(seg, opts.Titles),
			StartTimeSec: round(currentTimeSec),
		})
		currentTimeSec += duration
	}
	video.DurationSec = round(currentTimeSec)

	// Concatenate and grade
	finalStream := ffmpeg.Concat(streamInputs)
	if !opts.Grade.IsZero() {
		finalStream = finalStream.Filter("eq", gradeArgs(opts.Grade))
	}
	finalStream = finalStream.Filter("format", ffmpeg.Args{"yuv420p"})

	outputArgs := ffmpeg.KwArgs{
		"c:v":      "libx264",
		"r":        opts.FPS,
		"t":        video.DurationSec,
		"movflags": "+faststart",
	}
	streams := []*ffmpeg.Stream{finalStream}
	if audio := audioStream(opts); audio != nil {
		streams = append(streams, audio)
		outputArgs["c:a"] = "aac"
	}
	return ffmpeg.Output(streams, outputFilePath, outputArgs).OverWriteOutput(), video, nil
}

func segmentInput(seg config.Segment, opts Options) (*ffmpeg.Stream, float64, error) {
	switch seg.Kind {
	case config.KindVideo:
		duration := seg.Duration
		if duration <= 0 {
			probed, err := opts.Probe(seg.Source)
			if err != nil {
				return nil, 0, fmt.Errorf("probe %s: %w", seg.Source, err)
			}
			duration = probed
			return ffmpeg.Input(seg.Source).Video(), duration, nil
		}
		return ffmpeg.Input(seg.Source, ffmpeg.KwArgs{"t": duration}).Video(), duration, nil

	case config.KindImage, config.KindTitlecard:
		if seg.Source == "" {
			return nil, 0, errors.New("no image rendered for segment")
		}
		return ffmpeg.Input(seg.Source, ffmpeg.KwArgs{"loop": 1, "t": seg.Duration, "framerate": opts.FPS}).Video(), seg.Duration, nil

	case config.KindFrames:
		pattern := seg.Source
		if !strings.Contains(pattern, "%") {
			pattern = filepath.Join(seg.Source, FramePattern)
		}
		duration := seg.Duration
		if duration <= 0 {

			// Clip time depends on how many frames ffmpeg will read
			frames, err := countFrames(pattern)
			if err != nil {
				return nil, 0, err
			}
			duration = float64(frames) / float64(opts.FPS)
			return ffmpeg.Input(pattern, ffmpeg.KwArgs{"framerate": opts.FPS}).Video(), duration, nil
		}
		return ffmpeg.Input(pattern, ffmpeg.KwArgs{"framerate": opts.FPS, "t": duration}).Video(), duration, nil
	}
	return nil, 0, fmt.Errorf("unsupported segment kind %q", seg.Kind)
}

// fadeDuration keeps the fade in and fade out of a segment from overlapping
// once its real duration is known.
func fadeDuration(seg config.Segment, duration float64) float64 {
	fade := seg.TransitionDuration
	if fade*2 > duration {
		fade = round(duration / 2)
		log.Warn("Segment too short for its fade", "segment", seg.ID, "duration", duration, "fade", fade)
	}
	return fade
}

// countFrames counts the numbered files ffmpeg's image2 demuxer reads for
// pattern: the unbroken sequence starting at the first index it probes.
func countFrames(pattern string) (int, error) {
	exists := func(index int) bool {
		info, err := os.Stat(fmt.Sprintf(pattern, index))
		return err == nil && !info.IsDir()
	}

	start := -1
	for index := 0; index <= max_start_number; index++ {
		if exists(index) {
			start = index
			break
		}
	}
	if start < 0 {
		return 0, fmt.Errorf("no frames match %s", pattern)
	}

	count := 0
	for exists(start + count) {
		count++
	}
	return count, nil
}

func audioStream(opts Options) *ffmpeg.Stream {
	var narration, music *ffmpeg.Stream
	if opts.Narration != "" {
		narration = ffmpeg.Input(opts.Narration).Audio()
	}
	if opts.Music != "" {
		music = ffmpeg.Input(opts.Music, ffmpeg.KwArgs{"stream_loop": -1}).Audio().
			Filter("volume", ffmpeg.Args{fmt.Sprintf("%.2f", opts.MusicVolume)})
	}

	switch {
	case narration != nil && music != nil:
		return ffmpeg.Filter([]*ffmpeg.Stream{narration, music}, "amix", ffmpeg.Args{"inputs=2", "duration=first", "dropout_transition=0"})
	case narration != nil:
		return narration
	case music != nil:
		return music
	}
	return nil
}

func drawtextArgs(text config.Text) ffmpeg.Args {
	size := text.Size
	if size <= 0 {
		size = default_text_size
	}
	color := text.Color
	if color == "" {
		color = default_text_color
	}
	x, y := text.X, text.Y
	if x == "" {
		x = "(w-text_w)/2"
	}
	if y == "" {
		y = "h-text_h-60"
	}
	return ffmpeg.Args{
		fmt.Sprintf("text='%v'", escapeText(text.Text)),
		fmt.Sprintf("x=%v", x),
		fmt.Sprintf("y=%v", y),
		fmt.Sprintf("fontsize=%v", size),
		fmt.Sprintf("fontcolor=%v", color),
	}
}

func gradeArgs(grade config.Grade) ffmpeg.Args {
	var args ffmpeg.Args
	if grade.Contrast != 0 {
		args = append(args, fmt.Sprintf("contrast=%v", grade.Contrast))
	}
	if grade.Brightness != 0 {
		args = append(args, fmt.Sprintf("brightness=%v", grade.Brightness))
	}
	if grade.Saturation != 0 {
		args = append(args, fmt.Sprintf("saturation=%v", grade.Saturation))
	}
	return args
}

// Overlay text is single-quoted in the filter graph, so quote, backslash and
// the drawtext expansion marker are swapped for look-alikes.
var textEscaper = strings.NewReplacer(`'`, "’", `\`, "/", `%`, "％")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func clipName(seg config.Segment, titles map[string]string) string {
	if title, ok := titles[seg.Scene]; ok && title != "" {
		return title
	}
	return seg.ID
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// FramesToVideo encodes a directory of numbered screencast frames.
func FramesToVideo(framesDir string, fps int, outputFilePath string) error {
	return ffmpeg.Input(filepath.Join(framesDir, FramePattern), ffmpeg.KwArgs{"framerate": fps}).
		Filter("scale", ffmpeg.Args{"trunc(iw/2)*2:trunc(ih/2)*2"}).
		Output(outputFilePath, ffmpeg.KwArgs{"c:v": "libx264", "pix_fmt": "yuv420p"}).
		OverWriteOutput().
		Run()
}

// ProbeDuration reads the container duration with ffprobe.
func ProbeDuration(path string) (float64, error) {
	probe, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, err
	}
	duration := gjson.Get(probe, "format.duration")
	if !duration.Exists() {
		return 0, fmt.Errorf("no duration reported for %s", path)
	}
	return duration.Float(), nil
}
