package strings

import (
	"strings"
)

// DefaultReportMaxLen is the default maximum length for test reports in
// formatted output. Shared so tables and log lines truncate consistently.
const DefaultReportMaxLen = 60

// MinTruncateLen is the minimum maxLen value for TruncateReport. Values
// smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// TruncateReport truncates a test report to maxLen characters and ensures
// single-line output. It collapses all whitespace runs, newlines included,
// into single spaces and adds "..." if truncated.
//
// The function operates on runes rather than bytes, so truncation never
// lands in the middle of a multi-byte character.
//
// If maxLen is less than MinTruncateLen (4), it is clamped to
// MinTruncateLen to ensure there is room for at least one character plus
// "...".
func TruncateReport(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
