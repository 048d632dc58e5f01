package export

import (
	"strconv"
	"strings"
	"time"
)

var sinceLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
	"02.01.2006 15:04",
	"02.01.2006",
	"2.1.2006",
}

// ParseSince reads the optional lower bound of an export. It accepts an
// absolute date (ISO or day.month.year, optionally with a time) interpreted
// in loc, or a relative window such as "7d" or "2w" counted back from now.
func ParseSince(s string, now time.Time, loc *time.Location) (time.Time, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, false
	}
	if n, unit := s[:len(s)-1], s[len(s)-1]; unit == 'd' || unit == 'w' {
		if days, err := strconv.Atoi(n); err == nil && days > 0 {
			if unit == 'w' {
				days *= 7
			}
			return now.AddDate(0, 0, -days), true
		}
	}
	for _, layout := range sinceLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
