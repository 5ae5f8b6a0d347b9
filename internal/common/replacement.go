// Package common provides configuration, logging, retry and prompt template helpers.
//
// Prompt templates use {name} placeholders. At run time each placeholder is
// replaced with the value supplied for that name.
//
// Example:
//
//	Input:  "Summarize this GLPI ticket: {ticket_content}"
//	Values: {"ticket_content": "Printer is offline"}
//	Output: "Summarize this GLPI ticket: Printer is offline"
//
// Replacement is case-sensitive. Unknown placeholders are left unchanged and
// logged as warnings.
package common

import (
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
)

// placeholderPattern matches {name} placeholders.
// Allows alphanumeric characters, hyphens, and underscores.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// RenderTemplate replaces every {name} placeholder in template with values[name].
// Values are substituted verbatim; braces inside a value are not expanded again.
func RenderTemplate(template string, values map[string]string, logger arbor.ILogger) string {
	if template == "" {
		return template
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if value, exists := values[name]; exists {
			return value
		}
		if logger != nil {
			logger.Warn().
				Str("placeholder", match).
				Msg("Unresolved template placeholder")
		}
		return match
	})
}

// HasPlaceholder reports whether template references {name}
func HasPlaceholder(template, name string) bool {
	return strings.Contains(template, "{"+name+"}")
}

// TemplatePlaceholders returns the placeholder names referenced by template, in order of appearance
func TemplatePlaceholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, match[1])
	}
	return names
}
