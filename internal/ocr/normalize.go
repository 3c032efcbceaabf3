package ocr

import (
	"regexp"
	"strings"
)

var (
	reManyBlank = regexp.MustCompile(`\n{3,}`)
	reTrailWS   = regexp.MustCompile(`[ \t]+\n`)
)

// Normalize cleans recognized text without losing line structure: line
// structure is what the positional date fallback relies on.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reTrailWS.ReplaceAllString(s, "\n")
	s = reManyBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
