// Package critic probes a finished reel and grades it against configured
// thresholds with pass, warn and fail checks.
package critic

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pashonic/demoreel/src/config"
	"github.com/pashonic/demoreel/src/report"
)

const (
	bound_margin   = 0.05
	warn_weight    = 0.5
	check_duration = "duration"
	check_expected = "expected_duration"
	check_res      = "resolution"
	check_codec    = "codec"
	check_audio    = "audio"
	check_bitrate  = "bitrate"
	check_keywords = "keywords"
	check_llm      = "llm_review"
)

// Input is what a review needs besides the file itself.
type Input struct {
	ExpectedDurationSec float64
	Text                string
	Screenshots         []string
}

// Review probes path, runs the checks and, when llm is set, asks for a model
// opinion. A failing model call is logged and never fails the review.
func Review(ctx context.Context, path string, conf config.Critic, in Input, llm *LLMCritic) (*report.Critic, error) {
	meta, err := Probe(path)
	if err != nil {
		return nil, err
	}

	rep := &report.Critic{
		RunID:    report.NewRunID(),
		File:     path,
		Metadata: meta,
		Checks:   Evaluate(meta, conf, in.ExpectedDurationSec, in.Text),
	}

	if llm != nil {
		feedback, err := llm.Review(ctx, meta, in.Text, in.Screenshots)
		if err != nil {
			log.Warn("LLM review skipped", "err", err)
		} else {
			rep.LLM = feedback
			rep.Checks = append(rep.Checks, FeedbackCheck(feedback))
		}
	}

	rep.Score, rep.Passed = Score(rep.Checks)
	return rep, nil
}

// Evaluate grades the metadata. Thresholds left at zero skip their check.
func Evaluate(meta report.Metadata, conf config.Critic, expectedDuration float64, text string) []report.Check {
	checks := []report.Check{}

	// Duration band
	if conf.MinDurationSec > 0 || conf.MaxDurationSec > 0 {
		checks = append(checks, durationCheck(meta.DurationSec, conf.MinDurationSec, conf.MaxDurationSec))
	}

	// Timeline length
	if expectedDuration > 0 {
		check := report.Check{
			Name:     check_expected,
			Status:   report.StatusPass,
			Expected: fmt.Sprintf("%s ±%s", seconds(expectedDuration), seconds(conf.DurationToleranceSec)),
			Actual:   seconds(meta.DurationSec),
		}
		if diff := meta.DurationSec - expectedDuration; math.Abs(diff) > conf.DurationToleranceSec {
			check.Status = report.StatusFail
			check.Message = fmt.Sprintf("off by %s", seconds(diff))
		}
		checks = append(checks, check)
	}

	// Resolution
	if conf.Width > 0 || conf.Height > 0 {
		check := report.Check{
			Name:     check_res,
			Status:   report.StatusPass,
			Expected: dimensions(conf.Width, conf.Height),
			Actual:   fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		}
		if (conf.Width > 0 && meta.Width != conf.Width) || (conf.Height > 0 && meta.Height != conf.Height) {
			check.Status = report.StatusFail
		}
		checks = append(checks, check)
	}

	// Codec
	if conf.Codec != "" {
		check := report.Check{Name: check_codec, Status: report.StatusPass, Expected: conf.Codec, Actual: meta.VideoCodec}
		if !strings.EqualFold(conf.Codec, meta.VideoCodec) {
			check.Status = report.StatusFail
		}
		checks = append(checks, check)
	}

	// Audio
	audio := report.Check{Name: check_audio, Status: report.StatusPass, Actual: meta.AudioCodec}
	if meta.AudioCodec == "" {
		audio.Status = report.StatusWarn
		audio.Actual = "none"
		audio.Message = "no audio stream"
	}
	checks = append(checks, audio)

	// Bitrate
	if conf.MinBitrateKbps > 0 || conf.MaxBitrateKbps > 0 {
		checks = append(checks, bitrateCheck(meta.BitrateKbps, conf.MinBitrateKbps, conf.MaxBitrateKbps))
	}

	// Keywords
	if len(conf.Keywords) > 0 {
		checks = append(checks, keywordCheck(text, conf.Keywords, conf.MinKeywordCoverage))
	}
	return checks
}

func durationCheck(duration, min, max float64) report.Check {
	check := report.Check{
		Name:     check_duration,
		Status:   report.StatusPass,
		Expected: fmt.Sprintf("%s-%s", seconds(min), bound(max)),
		Actual:   seconds(duration),
	}
	switch {
	case min > 0 && duration < min:
		check.Status = report.StatusFail
		check.Message = "shorter than minimum"
	case max > 0 && duration > max:
		check.Status = report.StatusFail
		check.Message = "longer than maximum"
	case min > 0 && duration < min*(1+bound_margin):
		check.Status = report.StatusWarn
		check.Message = "close to minimum"
	case max > 0 && duration > max*(1-bound_margin):
		check.Status = report.StatusWarn
		check.Message = "close to maximum"
	}
	return check
}

func bitrateCheck(kbps, min, max float64) report.Check {
	check := report.Check{
		Name:     check_bitrate,
		Status:   report.StatusPass,
		Expected: fmt.Sprintf("%.0f-%s kbps", min, bound(max)),
		Actual:   fmt.Sprintf("%.0f kbps", kbps),
	}
	switch {
	case min > 0 && kbps < min/2:
		check.Status = report.StatusFail
		check.Message = "less than half the minimum"
	case min > 0 && kbps < min:
		check.Status = report.StatusWarn
		check.Message = "below minimum"
	case max > 0 && kbps > max:
		check.Status = report.StatusWarn
		check.Message = "above maximum"
	}
	return check
}

func keywordCheck(text string, keywords []string, minCoverage float64) report.Check {
	lower := strings.ToLower(text)
	var missing []string
	for _, keyword := range keywords {
		if !strings.Contains(lower, strings.ToLower(keyword)) {
			missing = append(missing, keyword)
		}
	}
	coverage := float64(len(keywords)-len(missing)) / float64(len(keywords))

	check := report.Check{
		Name:     check_keywords,
		Status:   report.StatusPass,
		Expected: fmt.Sprintf(">= %.0f%%", minCoverage*100),
		Actual:   fmt.Sprintf("%.0f%%", coverage*100),
	}
	if len(missing) > 0 {
		check.Message = "missing: " + strings.Join(missing, ", ")
		check.Status = report.StatusWarn
		if coverage < minCoverage {
			check.Status = report.StatusFail
		}
	}
	return check
}

// Score weighs warnings at half a pass and scales to 0-100. The reel passes
// when no check failed.
func Score(checks []report.Check) (float64, bool) {
	pass, warn, fail := report.Counts(checks)
	total := pass + warn + fail
	if total == 0 {
		return 0, false
	}
	score := (float64(pass) + warn_weight*float64(warn)) / float64(total) * 100
	return round(score), fail == 0
}

func seconds(v float64) string {
	return fmt.Sprintf("%.1fs", v)
}

func bound(v float64) string {
	if v <= 0 {
		return "any"
	}
	return fmt.Sprintf("%.0f", v)
}

func dimensions(width, height int) string {
	w, h := "any", "any"
	if width > 0 {
		w = fmt.Sprint(width)
	}
	if height > 0 {
		h = fmt.Sprint(height)
	}
	return w + "x" + h
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
