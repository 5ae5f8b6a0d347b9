// Package cleaner strips assistant boilerplate from LLM output before it is rendered.
package cleaner

import (
	"regexp"
	"strings"
)

// KeyInformationMarker is the section marker models tend to repeat
const KeyInformationMarker = "Key Information:"

// fillerPattern matches closing pleasantries that add nothing to a report.
var fillerPattern = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`Please let me know if you need any further assistance\.?`,
	`I[’']m here to help\.?`,
	`Best regards, \[Your Name\] IT Support Assistant\.?`,
	`(?:please )?let me know if you need (?:any )?(?:further |more )?(?:help|assistance)[.!]?`,
	`Hope this helps[.!]?`,
}, "|"))

// Clean removes filler phrases, trims and drops blank lines and keeps only the
// first "Key Information:" section. Clean is idempotent: Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	for {
		next := cleanOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

// cleanOnce applies one pass. Every change it makes shortens the text, so Clean terminates.
func cleanOnce(text string) string {
	text = fillerPattern.ReplaceAllString(text, "")
	text = normalizeLines(text)
	return collapseKeyInformation(text)
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// collapseKeyInformation keeps the text up to the second marker, preserving exactly one marker.
func collapseKeyInformation(text string) string {
	parts := strings.SplitN(text, KeyInformationMarker, 3)
	if len(parts) < 3 {
		return text
	}
	return parts[0] + KeyInformationMarker + parts[1]
}
