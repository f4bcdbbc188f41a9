package titlecard

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/pashonic/demoreel/src/config"
)

// RenderSegments renders every titlecard segment of the timeline into
// outputDir and points the segment's Source at the image. The card title is
// the linked narration scene's title, falling back to the segment id.
func RenderSegments(timeline *config.TimelineDoc, narration *config.NarrationDoc, style Style, outputDir string) ([]string, error) {
	var rendered []string
	for i := range timeline.Segments {
		seg := &timeline.Segments[i]
		if seg.Kind != config.KindTitlecard {
			continue
		}

		card := Card{Title: seg.ID, Subtitle: seg.Subtitle}
		if narration != nil {
			if scene, ok := narration.Scene(seg.Scene); ok {
				card.Title = scene.Title
			}
		}

		path := filepath.Join(outputDir, fmt.Sprintf("%02d-%s.png", i, seg.ID))
		log.Info("Rendering title card", "segment", seg.ID, "title", card.Title, "path", path)
		if err := Render(card, style, path); err != nil {
			return rendered, fmt.Errorf("title card %s: %w", seg.ID, err)
		}
		seg.Source = path
		rendered = append(rendered, path)
	}
	return rendered, nil
}
