package interval

// AncestorSegments returns the trie path of point: one segment per level
// (shift 0, step, 2*step, ...), each the block of that level holding point
func AncestorSegments(point int64, step uint8) ([]Segment, error) {
	if err := ValidatePrecisionStep(step); err != nil {
		return nil, err
	}
	segments := make([]Segment, 0, levelCount(step))
	for shift := uint(0); shift <= uint(MaxShift); shift += uint(step) {
		segments = append(segments, Segment{Start: alignDown(point, uint8(shift)), Shift: uint8(shift)})
	}
	return segments, nil
}

// AncestorsOf returns the terms of point's trie path, finest first
//
// Decompose always covers an interval with disjoint trie nodes, so an
// indexed interval contains point if and only if one of its terms equals one
// of these. Evaluating a containment query is a boolean OR over the postings
// of the returned terms
func AncestorsOf(point int64, step uint8) ([]Term, error) {
	segments, err := AncestorSegments(point, step)
	if err != nil {
		return nil, err
	}
	terms := make([]Term, len(segments))
	for i, seg := range segments {
		terms[i] = encode(seg.Start, seg.Shift)
	}
	return terms, nil
}

func levelCount(step uint8) int {
	return int(MaxShift)/int(step) + 1
}
