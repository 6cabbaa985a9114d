package config

import (
	"fmt"
	"strconv"
	"time"
)

// DateTimeFormatType represents date/time parsing formats
type DateTimeFormatType string

const (
	DateTimeFormatTypeIso8601   DateTimeFormatType = "iso8601"
	DateTimeFormatTypeRfc2822   DateTimeFormatType = "rfc2822"
	DateTimeFormatTypeRfc3339   DateTimeFormatType = "rfc3339"
	DateTimeFormatTypeTimestamp DateTimeFormatType = "timestamp"
	DateTimeFormatTypeDate      DateTimeFormatType = "date"
)

// ParseTimestamp reads a unix timestamp in seconds, milliseconds,
// microseconds or nanoseconds, told apart by magnitude
func ParseTimestamp(timestamp int64) (time.Time, error) {
	// 13 Apr 1972 23:59:55 GMT
	const minSeconds = 72057595
	// 16 Mar 2242 12:56:31 GMT
	const maxSeconds = 8589934591

	switch {
	case timestamp >= minSeconds && timestamp <= maxSeconds:
		return time.Unix(timestamp, 0).UTC(), nil
	case timestamp >= minSeconds*1e3 && timestamp <= maxSeconds*1e3:
		return time.UnixMilli(timestamp).UTC(), nil
	case timestamp >= minSeconds*1e6 && timestamp <= maxSeconds*1e6:
		return time.UnixMicro(timestamp).UTC(), nil
	case timestamp >= minSeconds*1e9 && timestamp <= maxSeconds*1e9:
		return time.Unix(0, timestamp).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("failed to parse unix timestamp `%d`. Supported timestamp ranges from `13 Apr 1972 23:59:55` to `16 Mar 2242 12:56:31`", timestamp)
	}
}

// TryParse attempts to parse s using the format
func (dtf DateTimeFormatType) TryParse(s string) (time.Time, error) {
	switch dtf {
	case DateTimeFormatTypeIso8601, DateTimeFormatTypeRfc3339:
		return time.Parse(time.RFC3339, s)
	case DateTimeFormatTypeRfc2822:
		return time.Parse(time.RFC1123Z, s)
	case DateTimeFormatTypeTimestamp:
		timestamp, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return ParseTimestamp(timestamp)
	case DateTimeFormatTypeDate:
		return time.Parse("2006-01-02", s)
	default:
		return time.Time{}, fmt.Errorf("unknown datetime format %q", dtf)
	}
}

// DateTimeFormats represents date/time parsing formats, tried in order
type DateTimeFormats []DateTimeFormatType

// DefaultDateTimeFormats returns the formats used when none are configured
func DefaultDateTimeFormats() DateTimeFormats {
	return DateTimeFormats{
		DateTimeFormatTypeDate,
		DateTimeFormatTypeRfc3339,
		DateTimeFormatTypeTimestamp,
	}
}

// Validate rejects unknown formats
func (dtf DateTimeFormats) Validate() error {
	for _, format := range dtf {
		switch format {
		case DateTimeFormatTypeIso8601, DateTimeFormatTypeRfc2822, DateTimeFormatTypeRfc3339,
			DateTimeFormatTypeTimestamp, DateTimeFormatTypeDate:
		default:
			return fmt.Errorf("unknown datetime format %q", format)
		}
	}
	return nil
}

// TryParse attempts to parse s using the configured formats
func (dtf DateTimeFormats) TryParse(s string) (time.Time, error) {
	for _, format := range dtf {
		if parsed, err := format.TryParse(s); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("none of the datetime formats was able to parse %q", s)
}
