package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive attribute values.
const RedactedValue = "[REDACTED]"

// sensitiveKeys are masked wherever they appear, including inside groups.
var sensitiveKeys = map[string]struct{}{
	"authorization":   {},
	"token":           {},
	"bearer":          {},
	"secret":          {},
	"hmac_secret":     {},
	"passphrase":      {},
	"password":        {},
	"private_key":     {},
	"dsn":             {},
	"idempotency_key": {},
}

// IsSensitive reports whether values logged under key are masked.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	_, ok := sensitiveKeys[normalized]
	return ok
}

// MaskValue returns RedactedValue for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds a string attribute, masking it when key is sensitive.
func MaskField(key, value string) slog.Attr {
	if IsSensitive(key) {
		return slog.String(key, MaskValue(value))
	}
	return slog.String(key, value)
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup || !IsSensitive(attr.Key) {
		return attr
	}
	return slog.String(attr.Key, MaskValue(attr.Value.String()))
}
