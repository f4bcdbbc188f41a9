// Package narration synthesizes per-scene voice-over, lays it out on a single
// narration track and writes caption stubs.
package narration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/pashonic/demoreel/src/config"
	"github.com/pashonic/demoreel/src/report"
	"github.com/pashonic/demoreel/src/utils/safename"
)

const (
	scenes_dir     = "scenes"
	track_file     = "narration.wav"
	sample_rate    = 44100
	channel_layout = "stereo"
)

type Options struct {
	OutputDir string
	Voice     string
}

// Generate synthesizes every scene in order. A scene counts as done only when
// its output file exists and is not empty; failures are logged and the next
// scene runs.
func Generate(ctx context.Context, engine Engine, doc *config.NarrationDoc, opts Options) (*report.Narration, error) {
	rep := &report.Narration{
		RunID:  report.NewRunID(),
		Scenes: []report.SceneAudio{},
		Errors: []string{},
	}

	// Make sure output directory exists
	dir := filepath.Join(opts.OutputDir, scenes_dir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return rep, err
	}

	offsets := doc.Offsets()
	for index, scene := range doc.Scenes {
		audio := report.SceneAudio{
			ID:       scene.ID,
			File:     ScenePath(opts.OutputDir, index, scene.ID, engine.Extension()),
			StartSec: offsets[index],
		}
		if err := ctx.Err(); err != nil {
			audio.Error = err.Error()
			rep.Scenes = append(rep.Scenes, audio)
			rep.Errors = append(rep.Errors, fmt.Sprintf("scene %s: %v", scene.ID, err))
			continue
		}

		log.Info("Synthesizing scene", "id", scene.ID, "file", audio.File)
		err := engine.Synthesize(ctx, scene.Narration, opts.Voice, audio.File)
		if err == nil {
			err = checkOutput(audio.File)
		}
		if err != nil {
			log.Error("Scene narration failed", "id", scene.ID, "err", err)
			audio.Error = err.Error()
			rep.Errors = append(rep.Errors, fmt.Sprintf("scene %s: %v", scene.ID, err))
		} else {
			audio.OK = true
		}
		rep.Scenes = append(rep.Scenes, audio)
	}
	return rep, nil
}

func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no audio written: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("audio file is empty")
	}
	return nil
}

// ScenePath names a scene's audio file after its index and id. Characters
// that could leave the scenes directory are replaced.
func ScenePath(outputDir string, index int, id, ext string) string {
	name := fmt.Sprintf("%02d", index)
	if id = safename.Clean(id); id != "" {
		name += "-" + id
	}
	return filepath.Join(outputDir, scenes_dir, name+"."+ext)
}

func TrackPath(outputDir string) string {
	return filepath.Join(outputDir, track_file)
}

// Track lays each scene's audio into a slot of the scene's duration (padded
// or trimmed) and concatenates the slots. Scenes without audio become
// silence so later scenes keep their offsets.
func Track(doc *config.NarrationDoc, rep *report.Narration, outputFilePath string) (*ffmpeg.Stream, error) {
	if len(doc.Scenes) == 0 {
		return nil, errors.New("no scenes")
	}
	if len(rep.Scenes) != len(doc.Scenes) {
		return nil, fmt.Errorf("narration report has %d scenes, document has %d", len(rep.Scenes), len(doc.Scenes))
	}

	var slots []*ffmpeg.Stream
	for index, scene := range doc.Scenes {
		var input *ffmpeg.Stream
		if rep.Scenes[index].OK {
			input = ffmpeg.Input(rep.Scenes[index].File).Audio()
		} else {
			input = ffmpeg.Input(fmt.Sprintf("anullsrc=r=%d:cl=%s", sample_rate, channel_layout), ffmpeg.KwArgs{"f": "lavfi", "t": scene.Duration}).Audio()
		}
		slot := input.
			Filter("aformat", ffmpeg.Args{}, ffmpeg.KwArgs{"sample_rates": sample_rate, "channel_layouts": channel_layout}).
			Filter("apad", ffmpeg.Args{}).
			Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": scene.Duration})
		slots = append(slots, slot)
	}

	track := ffmpeg.Concat(slots, ffmpeg.KwArgs{"v": 0, "a": 1})
	return track.Output(outputFilePath, ffmpeg.KwArgs{"ar": sample_rate, "ac": 2}).OverWriteOutput(), nil
}

// BuildTrack renders the narration track and records it on the report.
func BuildTrack(doc *config.NarrationDoc, rep *report.Narration, outputDir string) error {
	output := TrackPath(outputDir)
	stream, err := Track(doc, rep, output)
	if err != nil {
		return err
	}
	log.Info("Mixing narration track", "scenes", len(doc.Scenes), "failed", rep.Failed(), "output", output)
	if err := stream.Run(); err != nil {
		return fmt.Errorf("ffmpeg narration track: %w", err)
	}
	rep.Track = output
	return nil
}
