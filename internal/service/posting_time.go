package service

import (
	"strings"
	"time"
)

// ParsePostingTime combines a form date (2006-01-02) and clock (15:04) in loc into a UTC
// timestamp. A blank clock means midnight. A blank or unparsable value yields now.
func ParsePostingTime(date, clock string, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return now.UTC()
	}
	if clock == "" {
		clock = "00:00"
	}

	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, date+"T"+clock, loc); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}
