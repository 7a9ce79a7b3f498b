package redact

import (
	"regexp"
	"strings"
)

const maxDetailRunes = 512

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|openai[_-]?api[_-]?key|gemini[_-]?api[_-]?key|token|access_token|signature|sig)\b\s*[:=]\s*[^\s"'&]+`)

	// OpenAI style secret keys.
	secretKeyRe = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)

	// user:password@ in URLs.
	urlUserinfoRe = regexp.MustCompile(`(?i)\b(https?://)[^/\s:@]+:[^/\s@]+@`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = secretKeyRe.ReplaceAllString(out, "<redacted_key>")
	out = urlUserinfoRe.ReplaceAllString(out, "${1}<redacted>@")
	return strings.TrimSpace(out)
}

// Detail redacts s and truncates it so it can be returned to callers.
func Detail(s string) string {
	out := Secrets(s)

	runes := []rune(out)
	if len(runes) <= maxDetailRunes {
		return out
	}

	return strings.TrimSpace(string(runes[:maxDetailRunes])) + "..."
}
