package matcher

import "strings"

// nonBreakingSpace appears in identifiers copied out of spreadsheets and dashboards
const nonBreakingSpace = "\u00a0"

// NormalizeKey maps a raw identifier to the key space used for matching.
// Non-breaking spaces become regular spaces, surrounding whitespace is trimmed
// and, when caseInsensitive is set, the result is lower-cased.
// NormalizeKey is total and idempotent; an empty result never matches anything.
func NormalizeKey(raw string, caseInsensitive bool) string {
	key := strings.TrimSpace(strings.ReplaceAll(raw, nonBreakingSpace, " "))
	if caseInsensitive {
		key = strings.ToLower(key)
	}
	return key
}
