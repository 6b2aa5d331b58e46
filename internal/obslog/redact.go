package obslog

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in
// logs.
const RedactedValue = "[REDACTED]"

// redactionAllowlist names keys that are exempt from automatic redaction:
// domain identifiers safe to log in full (run/block/stash identifiers,
// severity plumbing), as opposed to connection strings and credentials.
var redactionAllowlist = map[string]struct{}{
	"service":        {},
	"env":            {},
	"message":        {},
	"severity":       {},
	"timestamp":      {},
	"error":          {},
	"reason":         {},
	"component":      {},
	"run_id":         {},
	"block_height":   {},
	"stash":          {},
	"validator":      {},
	"era":            {},
	"outcome":        {},
	"status":         {},
	"name":           {},
}

// IsAllowlisted reports whether a log key is exempt from automatic
// redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns a sorted copy of the allowlisted keys.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for k := range redactionAllowlist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr that redacts the value unless the key is
// allowlisted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
