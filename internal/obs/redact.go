package obs

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Redacted replaces sensitive values in log output.
const Redacted = "[REDACTED]"

// IsSensitiveField reports whether a field name likely carries a secret.
// Separators and case are ignored, so "Pass_Word" and "api-key" both match.
func IsSensitiveField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)

	if normalized == "authorization" {
		return true
	}
	for _, marker := range []string{"password", "secret", "token", "apikey", "cookie"} {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// FormatForm renders submitted form fields as stable "key=value" pairs with
// sensitive values replaced by Redacted.
func FormatForm(form url.Values) string {
	if len(form) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(form[k], ",")
		if IsSensitiveField(k) {
			value = Redacted
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, value))
	}
	return strings.Join(parts, " ")
}
