// Package timefmt converts the timestamp encodings IPTV providers use
// (XMLTV date-time strings, Unix epoch seconds) into time.Time.
package timefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTimestamp is returned when a timestamp string cannot be
// parsed into a valid instant. Callers skip the owning entry and continue.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

const (
	xmltvLayout       = "20060102150405"
	xmltvOffsetLayout = "20060102150405 -0700"
)

// ParseXMLTVTime parses an XMLTV timestamp: a 14-digit YYYYMMDDHHMMSS
// prefix, optionally followed by a timezone offset ("20231205120000 +0000").
// When the offset is present it is honored; otherwise the instant is taken
// as local time. Fewer than 14 digits is ErrMalformedTimestamp.
func ParseXMLTVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(xmltvLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	for _, c := range s[:len(xmltvLayout)] {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
		}
	}
	if rest := strings.TrimSpace(s[len(xmltvLayout):]); rest != "" {
		if t, err := time.Parse(xmltvOffsetLayout, s[:len(xmltvLayout)]+" "+rest); err == nil {
			return t, nil
		}
		// Unparseable trailing offset: fall through and use the prefix alone.
	}
	t, err := time.ParseInLocation(xmltvLayout, s[:len(xmltvLayout)], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	return t, nil
}

// ParseEpochSeconds converts a Unix timestamp in seconds to a time.Time.
// Used for Xtream epg_listings and "added" fields.
func ParseEpochSeconds(n int64) time.Time {
	return time.UnixMilli(n * 1000)
}

// ParseEpochString parses an epoch-seconds value that arrives as a string
// (Xtream encodes numbers as strings inconsistently).
func ParseEpochString(s string) (time.Time, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	return ParseEpochSeconds(n), nil
}

// ParseCalendarDate parses a "2006-01-02" release date string.
func ParseCalendarDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	return t, nil
}
