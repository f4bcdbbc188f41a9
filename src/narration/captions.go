package narration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pashonic/demoreel/src/config"
)

// WriteSRT writes one cue per scene spanning the scene's slot.
func WriteSRT(w io.Writer, doc *config.NarrationDoc) error {
	offsets := doc.Offsets()
	for i, scene := range doc.Scenes {
		start := offsets[i]
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1,
			Timestamp(start, ","),
			Timestamp(start+scene.Duration, ","),
			strings.TrimSpace(scene.Narration))
		if err != nil {
			return err
		}
	}
	return nil
}

func WriteVTT(w io.Writer, doc *config.NarrationDoc) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	offsets := doc.Offsets()
	for i, scene := range doc.Scenes {
		start := offsets[i]
		_, err := fmt.Fprintf(w, "%s\n%s --> %s\n%s\n\n",
			scene.ID,
			Timestamp(start, "."),
			Timestamp(start+scene.Duration, "."),
			strings.TrimSpace(scene.Narration))
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteCaptions writes captions.srt and captions.vtt into outputDir.
func WriteCaptions(doc *config.NarrationDoc, outputDir string) ([]string, error) {
	writers := []struct {
		name  string
		write func(io.Writer, *config.NarrationDoc) error
	}{
		{"captions.srt", WriteSRT},
		{"captions.vtt", WriteVTT},
	}

	var paths []string
	for _, writer := range writers {
		path := filepath.Join(outputDir, writer.name)
		file, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		if err := writer.write(file, doc); err != nil {
			file.Close()
			return paths, err
		}
		if err := file.Close(); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Timestamp formats seconds as hh:mm:ss plus milliseconds after sep.
func Timestamp(seconds float64, sep string) string {
	ms := int64(seconds*1000 + 0.5)
	h := ms / 3600000
	m := ms / 60000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms%1000)
}
