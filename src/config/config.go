// Package config loads the TOML pipeline configuration and the YAML/JSON
// narration and timeline documents it points at.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	default_config_file     = "config.toml"
	default_output_dir      = "output"
	default_width           = 1920
	default_height          = 1080
	default_fps             = 30
	default_timeout_sec     = 30
	default_music_volume    = 0.15
	default_duration_tol    = 1.0
	default_keyword_cover   = 0.5
	default_llm_model       = "gemini-2.5-flash"
	default_titlecard_size  = 72
	default_titlecard_bg    = "#101820"
	default_titlecard_fg    = "#f2f2f2"
	default_youtube_privacy = "unlisted"
	default_client_secret   = "client_secret.json"
	default_client_token    = "client_token.json"

	env_frontend_url = "FRONTEND_URL"
	env_sns_arn      = "DEMOREEL_SNS_ARN"
)

// Configuration validation errors.
var (
	ErrMissingProjectName  = errors.New("project.name is required")
	ErrMissingCaptureURL   = errors.New("capture.url or FRONTEND_URL is required")
	ErrMissingRootSelector = errors.New("capture.root_selector is required")
	ErrMissingActionType   = errors.New("capture.actions[].type is required")
	ErrMissingNarration    = errors.New("narration.file is required")
	ErrInvalidEngine       = errors.New("narration.engine must be 'command' or 'http'")
	ErrMissingHTTPURL      = errors.New("narration.http_url is required for the http engine")
	ErrMissingTimeline     = errors.New("timeline.file is required")
	ErrInvalidDurationBand = errors.New("critic.min_duration_sec cannot exceed critic.max_duration_sec")
	ErrInvalidBitrateBand  = errors.New("critic.min_bitrate_kbps cannot exceed critic.max_bitrate_kbps")
)

type Config struct {
	Project    Project    `toml:"project"`
	Logging    Logging    `toml:"logging"`
	Capture    Capture    `toml:"capture"`
	Narration  Narration  `toml:"narration"`
	Timeline   Timeline   `toml:"timeline"`
	Critic     Critic     `toml:"critic"`
	Titlecards Titlecards `toml:"titlecards"`
	Youtube    Youtube    `toml:"youtube"`
	Notify     Notify     `toml:"notify"`
}

type Project struct {
	Name      string `toml:"name"`
	OutputDir string `toml:"output_dir"`
}

type Logging struct {
	Level string `toml:"level"`
}

type Capture struct {
	URL          string   `toml:"url"`
	RootSelector string   `toml:"root_selector"`
	Width        int      `toml:"width"`
	Height       int      `toml:"height"`
	ShowBrowser  bool     `toml:"show_browser"`
	BrowserBin   string   `toml:"browser_bin"`
	TimeoutSec   int      `toml:"timeout_sec"`
	Record       bool     `toml:"record"`
	FPS          int      `toml:"fps"`
	Actions      []Action `toml:"actions"`
}

// Action is one scripted UI step of a capture run.
type Action struct {
	Type     string  `toml:"type"`
	Selector string  `toml:"selector"`
	Text     string  `toml:"text"`
	Name     string  `toml:"name"`
	WaitMs   int     `toml:"wait_ms"`
	Dx       float64 `toml:"dx"`
	Dy       float64 `toml:"dy"`
}

type Narration struct {
	File     string `toml:"file"`
	Engine   string `toml:"engine"`
	Voice    string `toml:"voice"`
	Format   string `toml:"format"`
	HTTPURL  string `toml:"http_url"`
	Captions bool   `toml:"captions"`
}

type Timeline struct {
	File        string  `toml:"file"`
	Width       int     `toml:"width"`
	Height      int     `toml:"height"`
	FPS         int     `toml:"fps"`
	Music       string  `toml:"music"`
	MusicVolume float64 `toml:"music_volume"`
	Grade       Grade   `toml:"grade"`
}

// Grade holds eq filter values. Zero values leave the channel untouched.
type Grade struct {
	Contrast   float64 `toml:"contrast"`
	Brightness float64 `toml:"brightness"`
	Saturation float64 `toml:"saturation"`
}

func (g Grade) IsZero() bool {
	return g.Contrast == 0 && g.Brightness == 0 && g.Saturation == 0
}

type Critic struct {
	MinDurationSec       float64  `toml:"min_duration_sec"`
	MaxDurationSec       float64  `toml:"max_duration_sec"`
	Width                int      `toml:"width"`
	Height               int      `toml:"height"`
	Codec                string   `toml:"codec"`
	MinBitrateKbps       float64  `toml:"min_bitrate_kbps"`
	MaxBitrateKbps       float64  `toml:"max_bitrate_kbps"`
	DurationToleranceSec float64  `toml:"duration_tolerance_sec"`
	Keywords             []string `toml:"keywords"`
	MinKeywordCoverage   float64  `toml:"min_keyword_coverage"`
	LLM                  LLM      `toml:"llm"`
}

type LLM struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"`
}

type Titlecards struct {
	FontFile   string  `toml:"font_file"`
	Background string  `toml:"background"`
	Foreground string  `toml:"foreground"`
	Size       float64 `toml:"size"`
}

type Youtube struct {
	Enabled          bool     `toml:"enabled"`
	Title            string   `toml:"title"`
	Description      string   `toml:"description"`
	Privacy          string   `toml:"privacy"`
	Tags             []string `toml:"tags"`
	CategoryId       string   `toml:"category_id"`
	ClientSecretFile string   `toml:"client_secret_file"`
	ClientTokenFile  string   `toml:"client_token_file"`
}

type Notify struct {
	SnsTopicArn string `toml:"sns_topic_arn"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Prefix    string `toml:"s3_prefix"`
}

// Load reads a TOML config file, fills defaults and applies environment
// overrides. It does not validate; call Validate for that.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = default_config_file
	}
	var conf Config
	if _, err := toml.DecodeFile(configFile, &conf); err != nil {
		return nil, err
	}
	conf.applyDefaults()
	conf.applyEnv()
	return &conf, nil
}

func (c *Config) applyDefaults() {
	if c.Project.OutputDir == "" {
		c.Project.OutputDir = default_output_dir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	// Capture
	if c.Capture.Width <= 0 {
		c.Capture.Width = default_width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = default_height
	}
	if c.Capture.TimeoutSec <= 0 {
		c.Capture.TimeoutSec = default_timeout_sec
	}
	if c.Capture.FPS <= 0 {
		c.Capture.FPS = default_fps
	}

	// Narration
	if c.Narration.Engine == "" {
		c.Narration.Engine = "command"
	}

	// Timeline
	if c.Timeline.Width <= 0 {
		c.Timeline.Width = c.Capture.Width
	}
	if c.Timeline.Height <= 0 {
		c.Timeline.Height = c.Capture.Height
	}
	if c.Timeline.FPS <= 0 {
		c.Timeline.FPS = c.Capture.FPS
	}
	if c.Timeline.MusicVolume <= 0 {
		c.Timeline.MusicVolume = default_music_volume
	}

	// Critic
	if c.Critic.DurationToleranceSec <= 0 {
		c.Critic.DurationToleranceSec = default_duration_tol
	}
	if c.Critic.MinKeywordCoverage <= 0 {
		c.Critic.MinKeywordCoverage = default_keyword_cover
	}
	if c.Critic.LLM.Model == "" {
		c.Critic.LLM.Model = default_llm_model
	}

	// Title cards
	if c.Titlecards.Size <= 0 {
		c.Titlecards.Size = default_titlecard_size
	}
	if c.Titlecards.Background == "" {
		c.Titlecards.Background = default_titlecard_bg
	}
	if c.Titlecards.Foreground == "" {
		c.Titlecards.Foreground = default_titlecard_fg
	}

	// Youtube
	if c.Youtube.Privacy == "" {
		c.Youtube.Privacy = default_youtube_privacy
	}
	if c.Youtube.ClientSecretFile == "" {
		c.Youtube.ClientSecretFile = default_client_secret
	}
	if c.Youtube.ClientTokenFile == "" {
		c.Youtube.ClientTokenFile = default_client_token
	}
}

func (c *Config) applyEnv() {
	if url := strings.TrimSpace(os.Getenv(env_frontend_url)); url != "" {
		c.Capture.URL = url
	}
	if arn := strings.TrimSpace(os.Getenv(env_sns_arn)); arn != "" {
		c.Notify.SnsTopicArn = arn
	}
}

// Validate checks the fields every stage needs.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Project.Name) == "" {
		errs = append(errs, ErrMissingProjectName)
	}
	if c.Critic.MaxDurationSec > 0 && c.Critic.MinDurationSec > c.Critic.MaxDurationSec {
		errs = append(errs, ErrInvalidDurationBand)
	}
	if c.Critic.MaxBitrateKbps > 0 && c.Critic.MinBitrateKbps > c.Critic.MaxBitrateKbps {
		errs = append(errs, ErrInvalidBitrateBand)
	}
	return errors.Join(errs...)
}

func (c *Config) ValidateCapture() error {
	var errs []error
	if strings.TrimSpace(c.Capture.URL) == "" {
		errs = append(errs, ErrMissingCaptureURL)
	}
	if strings.TrimSpace(c.Capture.RootSelector) == "" {
		errs = append(errs, ErrMissingRootSelector)
	}
	for _, action := range c.Capture.Actions {
		if strings.TrimSpace(action.Type) == "" {
			errs = append(errs, ErrMissingActionType)
			break
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ValidateNarration() error {
	var errs []error
	if strings.TrimSpace(c.Narration.File) == "" {
		errs = append(errs, ErrMissingNarration)
	}
	switch c.Narration.Engine {
	case "command":
	case "http":
		if strings.TrimSpace(c.Narration.HTTPURL) == "" {
			errs = append(errs, ErrMissingHTTPURL)
		}
	default:
		errs = append(errs, ErrInvalidEngine)
	}
	return errors.Join(errs...)
}

func (c *Config) ValidateTimeline() error {
	if strings.TrimSpace(c.Timeline.File) == "" {
		return ErrMissingTimeline
	}
	return nil
}
