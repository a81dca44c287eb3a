package util

import (
	"regexp"
	"strings"
)

var (
	reEmail = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reToken = regexp.MustCompile(`(?i)(api|secret|token|key)([=:]\s*)[A-Za-z0-9-_]{8,}`)
	reIPv4  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// RedactPII masks e-mail addresses, IPv4 addresses and key=value secrets in
// free text.
func RedactPII(s string) string {
	s = reEmail.ReplaceAllString(s, "[redacted-email]")
	s = reIPv4.ReplaceAllString(s, "[redacted-ip]")
	s = reToken.ReplaceAllString(s, "$1$2[redacted]")
	return s
}

// MaskSecret keeps the first four characters of a credential.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 4)
}
