// Package util provides small parsing helpers shared by edgemon packages.
package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseDuration parses human-friendly duration strings.
// Supports the standard Go units plus d (days) and w (weeks).
//
// Examples:
//   - "50ms" -> 50 milliseconds
//   - "30s"  -> 30 seconds
//   - "1d"   -> 24 hours
//   - "2w"   -> 14 days
//   - "1h30m" -> 1 hour 30 minutes (standard Go format)
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		if s == "0" {
			return 0, nil
		}
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	unit := s[len(s)-1]
	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return time.ParseDuration(s)
	}

	switch unit {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(s)
	}
}
