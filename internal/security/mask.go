// Package security provides credential masking for logs and command output.
package security

import (
	"regexp"
	"strings"
)

// sensitivePatterns contains regex patterns for credentials embedded in text,
// such as the apikey query parameter echoed back in url.Error messages.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|access[_-]?token|auth[_-]?token|password)[=:]\s*["']?([^\s"'&]+)`),
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSensitive masks credential-looking key=value pairs in a string.
func MaskSensitive(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			if len(sub) < 3 {
				return MaskCredential(match)
			}
			return strings.TrimSuffix(match, sub[2]) + MaskCredential(sub[2])
		})
	}
	return result
}
