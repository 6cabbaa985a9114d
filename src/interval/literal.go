package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseInterval parses the "start-end" literal form. The delimiter is the
// first '-' after the first character, so a negative start is read as a sign.
// Whitespace around either number is ignored. The bounds are not checked
// against each other; see ParseValidInterval
func ParseInterval(s string) (Interval, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return Interval{}, fmt.Errorf("%w: %q", ErrIntervalFormat, s)
	}

	middle := strings.IndexByte(trimmed[1:], '-')
	if middle < 0 {
		return Interval{}, fmt.Errorf("%w: %q has no delimiter", ErrIntervalFormat, s)
	}
	middle++

	start, err := parseBound(trimmed[:middle])
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start of %q: %v", ErrIntervalFormat, s, err)
	}
	end, err := parseBound(trimmed[middle+1:])
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end of %q: %v", ErrIntervalFormat, s, err)
	}

	return Interval{Start: start, End: end}, nil
}

// ParseValidInterval parses s and rejects intervals that end before they
// start
func ParseValidInterval(s string) (Interval, error) {
	iv, err := ParseInterval(s)
	if err != nil {
		return Interval{}, err
	}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

func parseBound(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty bound")
	}
	return strconv.ParseInt(s, 10, 64)
}
