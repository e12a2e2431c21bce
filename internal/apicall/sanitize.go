package apicall

import (
	"regexp"
	"unicode/utf8"
)

const defaultMaxBodyBytes = 16 * 1024

// Credential-bearing JSON fields and bearer tokens are redacted before a body
// is stored.
var (
	reCredentialField = regexp.MustCompile(`(?i)("(?:api[_-]?key|authorization|access[_-]?token|refresh[_-]?token|secret|password)"\s*:\s*)"[^"]*"`)
	reBearerToken     = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/-]+=*`)
	reProviderKey     = regexp.MustCompile(`\bsk-[A-Za-z0-9]{8,}\b`)
)

func sanitizeBody(body string, maxBytes int) string {
	if body == "" {
		return ""
	}

	body = reCredentialField.ReplaceAllString(body, `$1"[REDACTED]"`)
	body = reBearerToken.ReplaceAllString(body, "$1[REDACTED]")
	body = reProviderKey.ReplaceAllString(body, "[REDACTED]")

	if maxBytes > 0 && len(body) > maxBytes {
		// Back off to a rune boundary so the cut never leaves invalid UTF-8.
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "...[truncated]"
	}
	return body
}
