package util

import "strings"

// SanitizePostgresText strips NUL bytes and invalid UTF-8 sequences, neither
// of which postgres text columns accept. Self names and error messages pass
// through here before any insert.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
