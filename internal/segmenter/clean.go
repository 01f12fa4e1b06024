package segmenter

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\x{000B}\p{Z}\x{FEFF}]+`)
	newlineRun    = regexp.MustCompile(`\n+`)
	disallowed    = regexp.MustCompile(`[^\w\s.,!?;:()-]`)
)

// CleanText normalizes extracted text before chunking. It is lossy and must
// run exactly once per document.
func CleanText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = newlineRun.ReplaceAllString(text, "\n")
	text = disallowed.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
