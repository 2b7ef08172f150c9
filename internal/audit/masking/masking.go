package masking

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maskToken = "****"

var credentialPattern = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token)=([^\s&@]+)`)

var dsnUserinfoPattern = regexp.MustCompile(`://([^:/\s]+):([^@/\s]+)@`)

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if utf8.RuneCountInString(trimmed) <= 4 {
		return maskToken
	}
	runes := []rune(trimmed)
	return maskToken + string(runes[len(runes)-4:])
}

// SanitizeMessage prepares an error for persistence: only the first line is
// kept, credentials embedded in connection strings are masked, and the result
// is cut to at most limit runes.
func SanitizeMessage(message string, limit int) string {
	message = strings.TrimSpace(message)
	if idx := strings.IndexAny(message, "\r\n"); idx >= 0 {
		message = strings.TrimSpace(message[:idx])
	}
	message = credentialPattern.ReplaceAllString(message, "$1="+maskToken)
	message = dsnUserinfoPattern.ReplaceAllString(message, "://$1:"+maskToken+"@")

	if limit <= 0 || utf8.RuneCountInString(message) <= limit {
		return message
	}
	return string([]rune(message)[:limit])
}
