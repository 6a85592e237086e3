package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"cookie",
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._~+/=-]{16,})`),
	// Compact JWTs outside an Authorization header.
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]*`),
	regexp.MustCompile(`(?i)(token|secret|password)[=:]["']?([a-zA-Z0-9+/=_.-]{16,})["']?`),
}

// Redact replaces bearer tokens, JWTs and key=value secrets in s. URLs also
// lose sensitive query parameters and user info.
func Redact(s string) string {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = redactURL(u)
	}
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllString(s, RedactedValue)
	}
	return s
}

func redactURL(u *url.URL) string {
	if u.User != nil {
		u.User = url.User(RedactedValue)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if IsSensitiveField(key) {
				q.Set(key, RedactedValue)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// MaskPhone keeps the last three digits of a phone number for log lines.
func MaskPhone(phone string) string {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 3 {
		return phone
	}
	var b strings.Builder
	seen := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-3 {
				b.WriteByte('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
