package logging

import (
	"regexp"
)

// Redacted replaces secret material in log output.
const Redacted = "[REDACTED]"

var (
	// password=x / pwd=x / pass=x in keyword connection strings
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// bearer tokens in captured request or error text
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.]+`)

	// user:pass@host credentials embedded in URLs
	urlCredsPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// SanitizeConnectionString strips credentials from a database or endpoint URL
// so it can be logged. Both keyword (password=...) and URL (user:pass@host)
// forms are handled.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+Redacted)
	return urlCredsPattern.ReplaceAllString(sanitized, "://"+Redacted+"@")
}

// SanitizeError strips credentials from an error's message. Driver errors can
// echo the full connection string; webhook errors can echo auth headers.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+Redacted)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+Redacted)
	return urlCredsPattern.ReplaceAllString(sanitized, "://"+Redacted+"@")
}
