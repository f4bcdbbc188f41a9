// Package safename turns labels from config files into file name parts.
package safename

import (
	"regexp"
	"strings"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Clean replaces every run of characters outside [a-zA-Z0-9_-] with a dash
// and trims dashes from both ends. The result never contains a path
// separator and may be empty.
func Clean(name string) string {
	return strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(name), "-"), "-")
}
