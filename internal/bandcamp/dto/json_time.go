package dto

import (
	"fmt"
	"strings"
	"time"
)

// purchaseTimeFormats are the layouts Bandcamp uses for purchase timestamps.
var purchaseTimeFormats = []string{
	"02 Jan 2006 15:04:05 MST", // "01 Jan 2023 00:00:00 GMT"
	"2 Jan 2006 15:04:05 MST",  // "1 Jan 2023 00:00:00 GMT"
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseBandcampTime parses a purchase timestamp in any known layout.
// The empty string yields the zero time without an error.
func ParseBandcampTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, format := range purchaseTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}
