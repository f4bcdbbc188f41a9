package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document validation errors.
var (
	ErrNoScenes            = errors.New("at least one scene is required")
	ErrSceneMissingID      = errors.New("scene id is required")
	ErrSceneMissingTitle   = errors.New("scene title is required")
	ErrSceneMissingText    = errors.New("scene narration is required")
	ErrSceneBadDuration    = errors.New("scene duration must be positive")
	ErrNoSegments          = errors.New("at least one segment is required")
	ErrSegmentMissingSrc   = errors.New("segment source is required")
	ErrSegmentBadDuration  = errors.New("image and titlecard segments need a positive duration")
	ErrSegmentBadKind      = errors.New("segment kind must be video, image, frames or titlecard")
	ErrSegmentBadFadeRange = errors.New("segment transition_duration must be below half the segment duration")

	ErrSegmentBadTransition = errors.New("segment transition must be cut or fade")
)

const (
	KindVideo     = "video"
	KindImage     = "image"
	KindFrames    = "frames"
	KindTitlecard = "titlecard"

	TransitionCut  = "cut"
	TransitionFade = "fade"

	default_transition_duration = 0.5
)

// NarrationDoc is the ordered scene list used to drive TTS.
type NarrationDoc struct {
	Scenes []Scene `yaml:"scenes" json:"scenes"`
}

type Scene struct {
	ID        string  `yaml:"id" json:"id"`
	Title     string  `yaml:"title" json:"title"`
	Duration  float64 `yaml:"duration" json:"duration"`
	Narration string  `yaml:"narration" json:"narration"`
}

// TimelineDoc is the ordered segment list consumed by the assembly step.
type TimelineDoc struct {
	Segments []Segment `yaml:"segments" json:"segments"`
}

type Segment struct {
	ID                 string  `yaml:"id" json:"id"`
	Source             string  `yaml:"source" json:"source"`
	Kind               string  `yaml:"kind" json:"kind"`
	Duration           float64 `yaml:"duration" json:"duration"`
	Transition         string  `yaml:"transition" json:"transition"`
	TransitionDuration float64 `yaml:"transition_duration" json:"transition_duration"`
	Scene              string  `yaml:"scene" json:"scene"`
	Subtitle           string  `yaml:"subtitle" json:"subtitle"`
	Texts              []Text  `yaml:"texts" json:"texts"`
}

// Text is a drawtext overlay. X and Y accept ffmpeg expressions.
type Text struct {
	Text  string `yaml:"text" json:"text"`
	X     string `yaml:"x" json:"x"`
	Y     string `yaml:"y" json:"y"`
	Size  int    `yaml:"size" json:"size"`
	Color string `yaml:"color" json:"color"`
}

func LoadNarration(path string) (*NarrationDoc, error) {
	var doc NarrationDoc
	if err := decodeDocument(path, &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &doc, nil
}

func LoadTimeline(path string) (*TimelineDoc, error) {
	var doc TimelineDoc
	if err := decodeDocument(path, &doc); err != nil {
		return nil, err
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &doc, nil
}

func decodeDocument(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, out)
	}
	return yaml.Unmarshal(data, out)
}

func (d *NarrationDoc) Validate() error {
	if len(d.Scenes) == 0 {
		return ErrNoScenes
	}
	var errs []error
	for i, scene := range d.Scenes {
		if strings.TrimSpace(scene.ID) == "" {
			errs = append(errs, fmt.Errorf("scene %d: %w", i, ErrSceneMissingID))
		}
		if strings.TrimSpace(scene.Title) == "" {
			errs = append(errs, fmt.Errorf("scene %d: %w", i, ErrSceneMissingTitle))
		}
		if strings.TrimSpace(scene.Narration) == "" {
			errs = append(errs, fmt.Errorf("scene %d: %w", i, ErrSceneMissingText))
		}
		if scene.Duration <= 0 {
			errs = append(errs, fmt.Errorf("scene %d: %w", i, ErrSceneBadDuration))
		}
	}
	return errors.Join(errs...)
}

// Offsets returns the start time of every scene in seconds.
func (d *NarrationDoc) Offsets() []float64 {
	offsets := make([]float64, len(d.Scenes))
	current := 0.0
	for i, scene := range d.Scenes {
		offsets[i] = current
		current += scene.Duration
	}
	return offsets
}

func (d *NarrationDoc) TotalDuration() float64 {
	total := 0.0
	for _, scene := range d.Scenes {
		total += scene.Duration
	}
	return total
}

func (d *NarrationDoc) Scene(id string) (Scene, bool) {
	for _, scene := range d.Scenes {
		if scene.ID == id {
			return scene, true
		}
	}
	return Scene{}, false
}

// Text joins every scene's narration, used for keyword checks.
func (d *NarrationDoc) Text() string {
	parts := make([]string, 0, len(d.Scenes))
	for _, scene := range d.Scenes {
		parts = append(parts, scene.Title, scene.Narration)
	}
	return strings.Join(parts, "\n")
}

func (d *TimelineDoc) applyDefaults() {
	for i := range d.Segments {
		seg := &d.Segments[i]
		if seg.Kind == "" {
			seg.Kind = KindFromSource(seg.Source)
		}
		if seg.Transition == "" {
			seg.Transition = TransitionCut
		}
		if seg.Transition == TransitionFade && seg.TransitionDuration <= 0 {
			seg.TransitionDuration = default_transition_duration
		}
		if seg.ID == "" {
			seg.ID = fmt.Sprintf("segment-%02d", i)
		}
	}
}

func (d *TimelineDoc) Validate() error {
	if len(d.Segments) == 0 {
		return ErrNoSegments
	}
	var errs []error
	for i, seg := range d.Segments {
		switch seg.Kind {
		case KindVideo, KindImage, KindFrames:
			if strings.TrimSpace(seg.Source) == "" {
				errs = append(errs, fmt.Errorf("segment %d: %w", i, ErrSegmentMissingSrc))
			}
		case KindTitlecard:
		default:
			errs = append(errs, fmt.Errorf("segment %d: %w", i, ErrSegmentBadKind))
		}
		if (seg.Kind == KindImage || seg.Kind == KindTitlecard) && seg.Duration <= 0 {
			errs = append(errs, fmt.Errorf("segment %d: %w", i, ErrSegmentBadDuration))
		}
		switch seg.Transition {
		case TransitionCut, TransitionFade:
		default:
			errs = append(errs, fmt.Errorf("segment %d: %w", i, ErrSegmentBadTransition))
		}
		if seg.Transition == TransitionFade && seg.Duration > 0 && seg.TransitionDuration*2 >= seg.Duration {
			errs = append(errs, fmt.Errorf("segment %d: %w", i, ErrSegmentBadFadeRange))
		}
	}
	return errors.Join(errs...)
}

// ExpectedDuration is the sum of segment durations. Segments without a
// duration contribute nothing.
func (d *TimelineDoc) ExpectedDuration() float64 {
	total := 0.0
	for _, seg := range d.Segments {
		total += seg.Duration
	}
	return total
}

// KindFromSource guesses a segment kind from its source path.
func KindFromSource(source string) string {
	if strings.Contains(source, "%") {
		return KindFrames
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".png", ".jpg", ".jpeg":
		return KindImage
	case "":
		if source == "" {
			return KindTitlecard
		}
		return KindFrames
	default:
		return KindVideo
	}
}
