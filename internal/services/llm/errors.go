package llm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/ticketdigest/internal/common"
)

// ErrEmptyResponse is returned when a model answers with no content
var ErrEmptyResponse = errors.New("model returned empty content")

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(errStr), "rate limit")
}

// statusCodeRegex matches "status code: 401" / "status 401" / "Error 401" as emitted by the provider SDKs
var statusCodeRegex = regexp.MustCompile(`(?i)(?:status code|status|error)[:\s]+(\d{3})\b`)

// ExtractStatusCode returns the HTTP status embedded in a provider error, 0 when absent
func ExtractStatusCode(err error) int {
	if err == nil {
		return 0
	}
	matches := statusCodeRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	code, parseErr := strconv.Atoi(matches[1])
	if parseErr != nil {
		return 0
	}
	return code
}

// classify marks errors that cannot succeed on retry (bad request, auth, unknown model) as permanent.
// Rate limits, server errors and transport failures stay retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmptyResponse) {
		return common.Permanent(err)
	}
	if IsRateLimitError(err) {
		return err
	}
	if code := ExtractStatusCode(err); code >= 400 && code < 500 {
		return common.Permanent(err)
	}
	return err
}
