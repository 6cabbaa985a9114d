package interval

import (
	"fmt"
	"math"
)

const signBit = uint64(1) << 63

// sortable maps an int64 onto uint64 so that unsigned order matches signed
// order: math.MinInt64 becomes 0 and math.MaxInt64 becomes math.MaxUint64
func sortable(v int64) uint64 {
	return uint64(v) ^ signBit
}

func unsortable(u uint64) int64 {
	return int64(u ^ signBit)
}

// lowMask returns the mask of the low shift bits
func lowMask(shift uint8) uint64 {
	if shift >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<shift - 1
}

// Segment is the trie node [Start, Start + 2^Shift - 1]
type Segment struct {
	Start int64 `json:"start"`
	Shift uint8 `json:"shift"`
}

// End returns the last value covered by the segment, saturating at
// math.MaxInt64
func (s Segment) End() int64 {
	span := lowMask(s.Shift)
	u := sortable(s.Start)
	if u > math.MaxUint64-span {
		return math.MaxInt64
	}
	return unsortable(u + span)
}

// Interval returns the segment's range
func (s Segment) Interval() Interval {
	return Interval{Start: s.Start, End: s.End()}
}

// Contains reports whether point lies inside the segment
func (s Segment) Contains(point int64) bool {
	return s.Start <= point && point <= s.End()
}

// Overlaps reports whether the segment shares at least one point with
// [start, end]
func (s Segment) Overlaps(start, end int64) bool {
	return s.Start <= end && s.End() >= start
}

// Validate checks that the shift fits 64-bit values and that Start is
// aligned on 2^Shift
func (s Segment) Validate() error {
	if s.Shift > MaxShift {
		return fmt.Errorf("%w: shift %d > %d", ErrShiftOutOfRange, s.Shift, MaxShift)
	}
	if uint64(s.Start)&lowMask(s.Shift) != 0 {
		return fmt.Errorf("%w: start %d is not aligned on shift %d", ErrShiftOutOfRange, s.Start, s.Shift)
	}
	return nil
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d,%d]@%d", s.Start, s.End(), s.Shift)
}

// alignDown clears the low shift bits of v
func alignDown(v int64, shift uint8) int64 {
	return int64(uint64(v) &^ lowMask(shift))
}
