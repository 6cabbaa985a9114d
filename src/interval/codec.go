package interval

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// shiftStart + shift is the first byte of a term
	shiftStart byte = 0x20

	// TermLen is the byte length of every encoded term
	TermLen = 9
)

// Term is the ordered byte form of a Segment. Terms of equal shift sort by
// segment start; terms sort by shift first
type Term []byte

// Compare orders terms bytewise
func (t Term) Compare(other Term) int {
	return bytes.Compare(t, other)
}

// String renders the term as hex for logs and tooling
func (t Term) String() string {
	return hex.EncodeToString(t)
}

// ShiftPrefix returns the first byte shared by all terms of shift
func ShiftPrefix(shift uint8) byte {
	return shiftStart + shift
}

// Encode turns a segment into its term. It fails when the shift exceeds
// MaxShift or the start is not aligned on the shift
func Encode(seg Segment) (Term, error) {
	if err := seg.Validate(); err != nil {
		return nil, err
	}
	return encode(seg.Start, seg.Shift), nil
}

// MustEncode is Encode for segments produced by this package
func MustEncode(seg Segment) Term {
	term, err := Encode(seg)
	if err != nil {
		panic(err)
	}
	return term
}

// encode skips validation; low bits of start below shift are dropped
func encode(start int64, shift uint8) Term {
	term := make(Term, TermLen)
	term[0] = ShiftPrefix(shift)
	binary.BigEndian.PutUint64(term[1:], sortable(start)>>shift)
	return term
}

// Decode is the inverse of Encode
func Decode(term Term) (Segment, error) {
	if len(term) != TermLen {
		return Segment{}, fmt.Errorf("%w: length %d, want %d", ErrMalformedTerm, len(term), TermLen)
	}
	if term[0] < shiftStart || term[0] > shiftStart+MaxShift {
		return Segment{}, fmt.Errorf("%w: shift byte 0x%02x", ErrMalformedTerm, term[0])
	}
	shift := term[0] - shiftStart
	payload := binary.BigEndian.Uint64(term[1:])
	if shift > 0 && payload>>(64-uint(shift)) != 0 {
		return Segment{}, fmt.Errorf("%w: payload %x overflows shift %d", ErrMalformedTerm, payload, shift)
	}
	return Segment{Start: unsortable(payload << shift), Shift: shift}, nil
}
