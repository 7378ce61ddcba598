package utils

import (
	"strconv"
	"strings"
)

// ParseInt64 parses s after trimming whitespace. ok is false when s is not
// an integer.
func ParseInt64(s string) (n int64, ok bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseIntDefault parses a non-negative int, returning def when s is empty
// or invalid, and clamping to max when max > 0.
func ParseIntDefault(s string, def, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Field returns record[i], or "" when the record is too short.
func Field(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
