package logging

import (
	"encoding/hex"
	"log/slog"
	"slices"
	"strings"
)

// RedactedValue replaces the value of any masked field.
const RedactedValue = "[REDACTED]"

// Keys that never carry secrets, lower-cased and sorted.
var redactionAllowlist = []string{
	"caller",
	"component",
	"env",
	"error",
	"kind",
	"loanid",
	"message",
	"method",
	"reason",
	"service",
	"severity",
	"state",
	"timestamp",
}

// IsAllowlisted reports whether key is exempt from masking. Matching ignores
// case, surrounding space and underscores, so loan_id and loanId both match.
func IsAllowlisted(key string) bool {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "_", "")
	_, found := slices.BinarySearch(redactionAllowlist, normalized)
	return found
}

// RedactionAllowlist returns a copy of the keys logged without masking.
func RedactionAllowlist() []string {
	return slices.Clone(redactionAllowlist)
}

// MaskField returns value under key unless key could carry a secret, in
// which case the value is replaced by RedactedValue. Empty values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskBytes is MaskField for binary values such as signatures.
func MaskBytes(key string, value []byte) slog.Attr {
	return MaskField(key, hex.EncodeToString(value))
}
