package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 5 * time.Minute
	}
	return duration
}

// ParseCount parses a vote count. Counts are non-negative integers; a
// thousands separator written as a space is tolerated.
func ParseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty count")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// CleanHeader trims whitespace, quotes and a leading byte order mark from a
// CSV header cell.
func CleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	return strings.ReplaceAll(h, `"`, "")
}
