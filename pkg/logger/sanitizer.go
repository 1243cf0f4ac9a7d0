package logger

import (
	"regexp"
	"strings"
)

// Sensitive field patterns to filter from logs
var (
	tokenPattern   = regexp.MustCompile(`(?i)(token|jwt|bearer|session)[\s:=]+[^\s]+`)
	apiKeyPattern  = regexp.MustCompile(`(?i)(api[_-]?key|apikey|x-api-key)[\s:=]+[^\s]+`)
	secretPattern  = regexp.MustCompile(`(?i)(secret|client[_-]?secret|password)[\s:=]+[^\s]+`)
	dsnUserPattern = regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/\s]+:)[^@\s]+@`)
)

const redactedPlaceholder = "[REDACTED]"

// SanitizeLogMessage removes credentials from log messages
func SanitizeLogMessage(message string) string {
	message = tokenPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	message = apiKeyPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	message = secretPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	message = dsnUserPattern.ReplaceAllString(message, "${1}"+redactedPlaceholder+"@")

	return message
}

// SanitizeMap removes sensitive keys from a map
func SanitizeMap(data map[string]any) map[string]any {
	sensitiveKeys := []string{
		"token", "jwt", "bearer", "session",
		"api_key", "apikey", "api-key",
		"secret", "password", "code",
	}

	sanitized := make(map[string]any, len(data))
	for k, v := range data {
		lowerKey := strings.ToLower(k)
		isSensitive := false

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(lowerKey, sensitiveKey) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			sanitized[k] = redactedPlaceholder
		} else {
			sanitized[k] = v
		}
	}

	return sanitized
}
