// Package report holds the write-once JSON status documents each stage
// leaves behind for the next one.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	CaptureFile   = "capture.json"
	NarrationFile = "narration.json"
	AssemblyFile  = "assembly.json"
	CriticFile    = "critic.json"
	SummaryFile   = "summary.json"
)

type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

type Capture struct {
	RunID       string    `json:"run_id"`
	URL         string    `json:"url"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Steps       []Step    `json:"steps"`
	Screenshots []string  `json:"screenshots"`
	Video       string    `json:"video,omitempty"`
	Errors      []string  `json:"errors"`
}

type Step struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Selector  string `json:"selector,omitempty"`
	Name      string `json:"name,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Artifact  string `json:"artifact,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Narration struct {
	RunID    string       `json:"run_id"`
	Scenes   []SceneAudio `json:"scenes"`
	Track    string       `json:"track,omitempty"`
	Captions []string     `json:"captions,omitempty"`
	Errors   []string     `json:"errors"`
}

type SceneAudio struct {
	ID       string  `json:"id"`
	File     string  `json:"file"`
	StartSec float64 `json:"start_sec"`
	OK       bool    `json:"ok"`
	Error    string  `json:"error,omitempty"`
}

// Failed counts scenes without audio.
func (n *Narration) Failed() int {
	failed := 0
	for _, scene := range n.Scenes {
		if !scene.OK {
			failed++
		}
	}
	return failed
}

type Assembly struct {
	RunID               string  `json:"run_id"`
	Output              string  `json:"output"`
	Clips               []Clip  `json:"clips"`
	ExpectedDurationSec float64 `json:"expected_duration_sec"`
}

type Clip struct {
	Name         string  `json:"name"`
	StartTimeSec float64 `json:"start_sec"`
}

type Critic struct {
	RunID    string    `json:"run_id"`
	File     string    `json:"file"`
	Metadata Metadata  `json:"metadata"`
	Checks   []Check   `json:"checks"`
	Score    float64   `json:"score"`
	Passed   bool      `json:"passed"`
	LLM      *Feedback `json:"llm,omitempty"`
}

type Metadata struct {
	DurationSec float64 `json:"duration_sec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VideoCodec  string  `json:"video_codec"`
	AudioCodec  string  `json:"audio_codec,omitempty"`
	BitrateKbps float64 `json:"bitrate_kbps"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
}

type Check struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

type Feedback struct {
	Model    string  `json:"model"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Summary records one iteration of a full pipeline run.
type Summary struct {
	RunID      string            `json:"run_id"`
	Iteration  int               `json:"iteration"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Stages     map[string]string `json:"stages"`
	Score      float64           `json:"score"`
	Passed     bool              `json:"passed"`
	Errors     []string          `json:"errors"`
}

func NewRunID() string {
	return uuid.NewString()
}

// Write stores v as indented JSON, creating parent directories.
func Write(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func Read(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
