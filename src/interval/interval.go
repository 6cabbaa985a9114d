// Package interval indexes closed int64 intervals as sets of trie-aligned
// segments so that containment and intersection queries can be answered by
// looking up terms in a sorted term dictionary
//
// An interval [start, end] is decomposed once, at index time, into segments
// whose lengths are powers of two aligned on their own length. Every segment
// is encoded as one term. A point query ORs the postings of the point's
// ancestor terms; an intersection query walks the dictionary level by level
//
// The precision step used at query time must equal the one used at index
// time. Terms do not record it, so a mismatch silently produces wrong
// results
package interval

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidInterval is returned when an interval ends before it starts
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidPrecisionStep is returned for precision steps outside
	// [1, MaxPrecisionStep]
	ErrInvalidPrecisionStep = errors.New("invalid precision step")

	// ErrShiftOutOfRange is returned when encoding a segment whose shift
	// exceeds MaxShift or whose start is not aligned on its shift
	ErrShiftOutOfRange = errors.New("segment shift out of range")

	// ErrMalformedTerm is returned when decoding bytes that were not produced
	// by Encode
	ErrMalformedTerm = errors.New("malformed interval term")

	// ErrIntervalFormat is returned when an interval literal cannot be parsed
	ErrIntervalFormat = errors.New("invalid interval format")
)

const (
	// DefaultPrecisionStep is the number of bits each trie level covers
	DefaultPrecisionStep uint8 = 4

	// MaxPrecisionStep bounds the number of segments a single level can
	// emit to 2^MaxPrecisionStep
	MaxPrecisionStep uint8 = 16

	// MaxShift is the largest segment shift over 64-bit values
	MaxShift uint8 = 63
)

// ValidatePrecisionStep checks that step can be used to decompose or query
func ValidatePrecisionStep(step uint8) error {
	if step < 1 || step > MaxPrecisionStep {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidPrecisionStep, step, MaxPrecisionStep)
	}
	return nil
}

// Interval is the closed range [Start, End]
type Interval struct {
	Start int64 `json:"start" yaml:"start"`
	End   int64 `json:"end" yaml:"end"`
}

// New returns the interval [start, end]. It does not validate the bounds
func New(start, end int64) Interval {
	return Interval{Start: start, End: end}
}

// Validate reports ErrInvalidInterval when End < Start
func (iv Interval) Validate() error {
	if iv.End < iv.Start {
		return fmt.Errorf("%w: end %d is before start %d", ErrInvalidInterval, iv.End, iv.Start)
	}
	return nil
}

// Contains reports whether point lies inside the interval
func (iv Interval) Contains(point int64) bool {
	return iv.Start <= point && point <= iv.End
}

// Intersects reports whether the two intervals share at least one point
func (iv Interval) Intersects(other Interval) bool {
	return iv.Start <= other.End && iv.End >= other.Start
}

// Equal compares both bounds
func (iv Interval) Equal(other Interval) bool {
	return iv.Start == other.Start && iv.End == other.End
}

// String renders the interval in the "start-end" literal form accepted by
// ParseInterval
func (iv Interval) String() string {
	return strconv.FormatInt(iv.Start, 10) + "-" + strconv.FormatInt(iv.End, 10)
}
