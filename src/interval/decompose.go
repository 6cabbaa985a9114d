package interval

// Decompose splits [min, max] into the trie-aligned segments that cover it
// exactly. Segments are returned in ascending start order and never overlap
//
// Starting at shift 0, each level peels off the partial blocks at both ends
// of the remaining range that cannot be merged into a block of the next level
// (shift + step). What is left when no further level fits is emitted as a run
// of blocks at the current shift
func Decompose(min, max int64, step uint8) ([]Segment, error) {
	if err := ValidatePrecisionStep(step); err != nil {
		return nil, err
	}
	if err := (Interval{Start: min, End: max}).Validate(); err != nil {
		return nil, err
	}

	lo, hi := sortable(min), sortable(max)

	var lower []Segment
	// upper holds one run per level; levels are emitted coarsest first
	var upper [][]Segment

	shift := uint8(0)
	for {
		next := uint(shift) + uint(step)
		if next >= 64 {
			lower = appendBlocks(lower, lo, hi, shift)
			break
		}

		mask := lowMask(step) << shift
		diff := uint64(1) << next
		hasLower := lo&mask != 0
		hasUpper := hi&mask != mask

		nextLo := lo
		if hasLower {
			nextLo += diff
		}
		nextLo &^= mask

		nextHi := hi
		if hasUpper {
			nextHi -= diff
		}
		nextHi &^= mask

		lowerWrapped := nextLo < lo
		upperWrapped := nextHi > hi
		if nextLo > nextHi || lowerWrapped || upperWrapped {
			lower = appendBlocks(lower, lo, hi, shift)
			break
		}

		if hasLower {
			lower = appendBlocks(lower, lo, lo|mask, shift)
		}
		if hasUpper {
			upper = append(upper, appendBlocks(nil, hi&^mask, hi, shift))
		}

		lo, hi = nextLo, nextHi
		shift = uint8(next)
	}

	segments := lower
	for i := len(upper) - 1; i >= 0; i-- {
		segments = append(segments, upper[i]...)
	}
	return segments, nil
}

// appendBlocks appends one segment per 2^shift block whose start lies in
// [from, to], both given in the sortable domain
func appendBlocks(dst []Segment, from, to uint64, shift uint8) []Segment {
	from &^= lowMask(shift)
	to &^= lowMask(shift)
	span := uint64(1) << shift
	for start := from; ; start += span {
		dst = append(dst, Segment{Start: unsortable(start), Shift: shift})
		if start >= to {
			break
		}
	}
	return dst
}

// DecomposeTerms decomposes iv and encodes every segment
func DecomposeTerms(iv Interval, step uint8) ([]Term, error) {
	segments, err := Decompose(iv.Start, iv.End, step)
	if err != nil {
		return nil, err
	}
	terms := make([]Term, len(segments))
	for i, seg := range segments {
		terms[i] = encode(seg.Start, seg.Shift)
	}
	return terms, nil
}
