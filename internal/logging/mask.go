package logging

import (
	"strings"
)

const (
	// MaskChar is the character used for masking.
	MaskChar = "*"
	// DefaultMaskLength is how many mask characters to show.
	DefaultMaskLength = 3
	// URLMaskLength is how many characters of a URL stay visible.
	URLMaskLength = 30
)

// MaskToken hides a bearer or refresh token, keeping only a short prefix so
// two different tokens can still be told apart in logs.
func MaskToken(token string) string {
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return strings.Repeat(MaskChar, DefaultMaskLength)
	}
	return token[:6] + strings.Repeat(MaskChar, DefaultMaskLength)
}

// MaskURL masks a URL, showing only the first URLMaskLength characters.
// Webhook URLs embed their secret in the path.
func MaskURL(url string) string {
	if len(url) <= URLMaskLength {
		return url
	}
	return url[:URLMaskLength] + strings.Repeat(MaskChar, DefaultMaskLength)
}

// sensitiveFields are field names whose values never reach the log.
var sensitiveFields = []string{"token", "password", "secret", "authorization"}

// IsSensitiveField checks if a field name indicates sensitive data.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
