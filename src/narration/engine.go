package narration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pashonic/demoreel/src/utils/restclient"
)

const (
	env_tts_api_key = "TTS_API_KEY"

	format_aiff = "aiff"
	format_wav  = "wav"
	format_mp3  = "mp3"
)

// Engine turns one scene's text into an audio file.
type Engine interface {
	Synthesize(ctx context.Context, text, voice, outputFilePath string) error
	Extension() string
}

// CommandEngine shells out to the platform speech command: say on macOS,
// espeak-ng (or espeak) elsewhere.
type CommandEngine struct {
	GOOS     string
	Format   string
	LookPath func(file string) (string, error)
	Run      func(ctx context.Context, name string, args ...string) error
}

func NewCommandEngine(format string) *CommandEngine {
	return &CommandEngine{
		GOOS:     runtime.GOOS,
		Format:   format,
		LookPath: exec.LookPath,
		Run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e *CommandEngine) Extension() string {
	if e.Format != "" {
		return e.Format
	}
	if e.GOOS == "darwin" {
		return format_aiff
	}
	return format_wav
}

func (e *CommandEngine) Synthesize(ctx context.Context, text, voice, outputFilePath string) error {
	name, args, err := e.Command(text, voice, outputFilePath)
	if err != nil {
		return err
	}
	log.Debug("Running speech command", "cmd", name, "output", outputFilePath)
	return e.Run(ctx, name, args...)
}

// Command builds the speech command line for the engine's platform.
func (e *CommandEngine) Command(text, voice, outputFilePath string) (string, []string, error) {
	if e.GOOS == "darwin" {
		args := []string{}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		if e.Extension() == format_wav {
			args = append(args, "--file-format=WAVE", "--data-format=LEI16@22050")
		}
		args = append(args, "-o", outputFilePath, text)
		return "say", args, nil
	}

	if e.Extension() != format_wav {
		return "", nil, fmt.Errorf("espeak only writes wav, not %s", e.Extension())
	}
	name := ""
	for _, candidate := range []string{"espeak-ng", "espeak"} {
		if _, err := e.LookPath(candidate); err == nil {
			name = candidate
			break
		}
	}
	if name == "" {
		return "", nil, errors.New("no speech command found (tried espeak-ng, espeak)")
	}
	args := []string{}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, "-w", outputFilePath, text)
	return name, args, nil
}

// HTTPEngine posts scene text to a TTS provider that answers with audio bytes.
type HTTPEngine struct {
	URL    string
	APIKey string
	Format string
}

func NewHTTPEngine(url, format string) *HTTPEngine {
	return &HTTPEngine{
		URL:    url,
		APIKey: os.Getenv(env_tts_api_key),
		Format: format,
	}
}

func (e *HTTPEngine) Extension() string {
	if e.Format != "" {
		return e.Format
	}
	return format_mp3
}

func (e *HTTPEngine) Synthesize(ctx context.Context, text, voice, outputFilePath string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("empty text")
	}
	headers := http.Header{}
	if e.APIKey != "" {
		headers.Set("Authorization", "Token "+e.APIKey)
	}
	payload := map[string]string{"text": text}
	if voice != "" {
		payload["voice"] = voice
	}
	audio, err := restclient.PostJSON(ctx, e.URL, payload, headers)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	return os.WriteFile(outputFilePath, audio, 0644)
}
