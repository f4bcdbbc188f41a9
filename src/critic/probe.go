package critic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/pashonic/demoreel/src/report"
)

// Probe runs ffprobe on the reel and extracts the fields the checks need.
func Probe(path string) (report.Metadata, error) {
	probe, err := ffmpeg.Probe(path)
	if err != nil {
		return report.Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbe(probe)
}

// ParseProbe reads ffprobe's -show_format -show_streams JSON output.
func ParseProbe(probe string) (report.Metadata, error) {
	if !gjson.Valid(probe) {
		return report.Metadata{}, errors.New("ffprobe output is not JSON")
	}
	parsed := gjson.Parse(probe)
	video := parsed.Get(`streams.#(codec_type=="video")`)
	if !video.Exists() {
		return report.Metadata{}, errors.New("no video stream")
	}

	meta := report.Metadata{
		DurationSec: parsed.Get("format.duration").Float(),
		Width:       int(video.Get("width").Int()),
		Height:      int(video.Get("height").Int()),
		VideoCodec:  video.Get("codec_name").String(),
		AudioCodec:  parsed.Get(`streams.#(codec_type=="audio").codec_name`).String(),
		BitrateKbps: parsed.Get("format.bit_rate").Float() / 1000,
		FrameRate:   frameRate(video.Get("r_frame_rate").String()),
	}

	// Some containers only report duration per stream
	if meta.DurationSec == 0 {
		meta.DurationSec = video.Get("duration").Float()
	}
	return meta, nil
}

// frameRate turns ffprobe's "30000/1001" rationals into frames per second.
func frameRate(rational string) float64 {
	num, den, found := strings.Cut(rational, "/")
	if !found {
		return gjson.Parse(rational).Float()
	}
	d := gjson.Parse(den).Float()
	if d == 0 {
		return 0
	}
	return round(gjson.Parse(num).Float() / d)
}
