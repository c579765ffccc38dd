package helpers

import (
	"strings"
	"time"
)

var flexibleDateLayouts = []string{
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006-1-2",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"2.1.2006",
}

// ParseFlexibleDate tries several common date formats used in Telegram flows.
// It returns the parsed time in the local timezone and true on success.
func ParseFlexibleDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range flexibleDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseFlexibleDateUnix returns the Unix timestamp in seconds for the parsed date.
func ParseFlexibleDateUnix(input string) (int64, bool) {
	if t, ok := ParseFlexibleDate(input); ok {
		return t.Unix(), true
	}
	return 0, false
}

// ParseExpiry accepts either a relative duration ("48h", "90m", "3d") or a date
// understood by ParseFlexibleDate, and returns the resulting absolute time.
// Non-positive durations and moments not after now are rejected.
func ParseExpiry(input string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return time.Time{}, false
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if d, err := time.ParseDuration(days + "h"); err == nil {
			if d <= 0 {
				return time.Time{}, false
			}
			return now.Add(24 * d), true
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, false
		}
		return now.Add(d), true
	}
	t, ok := ParseFlexibleDate(input)
	if !ok || !t.After(now) {
		return time.Time{}, false
	}
	return t, true
}
