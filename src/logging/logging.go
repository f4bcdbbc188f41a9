// Package logging configures the colored console logger shared by every stage.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const default_prefix = "demoreel"

// Setup installs a timestamped, level-colored logger as the package default
// and returns it. Unknown levels fall back to info.
func Setup(level string) *log.Logger {
	return SetupWriter(os.Stderr, level)
}

func SetupWriter(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          default_prefix,
	})
	logger.SetLevel(ParseLevel(level))
	log.SetDefault(logger)
	return logger
}

func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
