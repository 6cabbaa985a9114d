package interval

import (
	"fmt"
)

// Phase is the coarse state of an intersection walk
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseAtShift
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseAtShift:
		return "at_shift"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Verdict is what Advance decided about the entry under the cursor
type Verdict uint8

const (
	// VerdictMatch yields the entry; the cursor then advances in order
	VerdictMatch Verdict = iota + 1
	// VerdictSkip escalates to the next level; the cursor must seek to
	// EnumState.Seek
	VerdictSkip
	// VerdictDone ends the walk
	VerdictDone
)

// IntersectionQuery selects the indexed segments overlapping [Start, End]
// in Field
type IntersectionQuery struct {
	Field string
	Start int64
	End   int64
	Step  uint8
}

// NewIntersectionQuery validates the range and the precision step
func NewIntersectionQuery(field string, start, end int64, step uint8) (IntersectionQuery, error) {
	if err := ValidatePrecisionStep(step); err != nil {
		return IntersectionQuery{}, err
	}
	if err := (Interval{Start: start, End: end}).Validate(); err != nil {
		return IntersectionQuery{}, err
	}
	return IntersectionQuery{Field: field, Start: start, End: end, Step: step}, nil
}

// EnumState is the complete state of an intersection walk between two
// cursor moves. It carries no reference to the cursor itself
type EnumState struct {
	Phase Phase
	Level uint8
	// Seek is the term the cursor must be repositioned at before the next
	// Advance. Nil means the cursor advances by one entry
	Seek Term
	// Last is the segment of the most recent match
	Last Segment
}

// seekTarget is the first term of level that can overlap the query: the
// level's block holding q.Start
func (q IntersectionQuery) seekTarget(level uint8) Term {
	return encode(alignDown(q.Start, level), level)
}

// Init returns the state positioned on level 0 at q.Start
func (q IntersectionQuery) Init() EnumState {
	return EnumState{Phase: PhaseAtShift, Level: 0, Seek: q.seekTarget(0)}
}

// Advance consumes the entry under the cursor (ok is false when the cursor is
// exhausted) and returns the next state
//
// Within one level terms are visited from the block holding q.Start upwards,
// so every visited segment ends at or after q.Start. The first segment of the
// level that starts after q.End ends the level: all later ones start even
// later. The walk then seeks the next coarser level from its own block
// holding q.Start, so no segment that starts before the jump target is ever
// passed over
func (q IntersectionQuery) Advance(st EnumState, entry DictEntry, ok bool) (EnumState, Verdict, error) {
	if st.Phase != PhaseAtShift {
		return EnumState{Phase: PhaseDone, Level: st.Level}, VerdictDone, nil
	}
	if !ok || entry.Field != q.Field {
		return EnumState{Phase: PhaseDone, Level: st.Level}, VerdictDone, nil
	}

	seg, err := Decode(entry.Term)
	if err != nil {
		return EnumState{Phase: PhaseDone, Level: st.Level}, VerdictDone,
			fmt.Errorf("field %q: %w", entry.Field, err)
	}

	if seg.Shift == st.Level && seg.Overlaps(q.Start, q.End) {
		return EnumState{Phase: PhaseAtShift, Level: st.Level, Last: seg}, VerdictMatch, nil
	}
	return q.escalate(st.Level)
}

func (q IntersectionQuery) escalate(level uint8) (EnumState, Verdict, error) {
	next := uint(level) + uint(q.Step)
	if next > uint(MaxShift) {
		return EnumState{Phase: PhaseDone, Level: level}, VerdictDone, nil
	}
	return EnumState{Phase: PhaseAtShift, Level: uint8(next), Seek: q.seekTarget(uint8(next))}, VerdictSkip, nil
}

// IntersectionEnumerator yields every indexed segment overlapping a query
// by driving IntersectionQuery.Advance over a TermDictionary. Segments of one
// document may be yielded several times; de-duplication is left to the
// posting lookup
type IntersectionEnumerator struct {
	dict   TermDictionary
	query  IntersectionQuery
	state  EnumState
	cursor TermCursor
}

// NewIntersectionEnumerator starts a walk of dict for query
func NewIntersectionEnumerator(dict TermDictionary, query IntersectionQuery) *IntersectionEnumerator {
	return &IntersectionEnumerator{
		dict:  dict,
		query: query,
		state: query.Init(),
	}
}

// State returns the current walk state
func (e *IntersectionEnumerator) State() EnumState {
	return e.state
}

// Next returns the next overlapping segment and its term. It returns false
// once the walk is done
func (e *IntersectionEnumerator) Next() (Segment, Term, bool, error) {
	for e.state.Phase != PhaseDone {
		entry, ok, err := e.position()
		if err != nil {
			e.finish()
			return Segment{}, nil, false, err
		}

		next, verdict, err := e.query.Advance(e.state, entry, ok)
		e.state = next
		if err != nil {
			e.finish()
			return Segment{}, nil, false, err
		}

		switch verdict {
		case VerdictMatch:
			return next.Last, append(Term(nil), entry.Term...), true, nil
		case VerdictSkip:
			continue
		default:
			e.finish()
		}
	}
	return Segment{}, nil, false, nil
}

// position moves the cursor as the state requires and returns the entry
// under it
func (e *IntersectionEnumerator) position() (DictEntry, bool, error) {
	if e.state.Seek == nil {
		if e.cursor == nil {
			return DictEntry{}, false, nil
		}
		return e.cursor.Advance()
	}

	if e.cursor != nil {
		if err := e.cursor.Close(); err != nil {
			return DictEntry{}, false, err
		}
		e.cursor = nil
	}

	cursor, err := e.dict.SeekTermsOrEqual(e.query.Field, e.state.Seek)
	if err != nil {
		return DictEntry{}, false, fmt.Errorf("failed to seek level %d: %w", e.state.Level, err)
	}
	e.cursor = cursor
	e.state.Seek = nil

	entry, ok := cursor.Current()
	return entry, ok, nil
}

func (e *IntersectionEnumerator) finish() {
	e.state.Phase = PhaseDone
	e.state.Seek = nil
	_ = e.Close()
}

// Close releases the underlying cursor. It is safe to call more than once
func (e *IntersectionEnumerator) Close() error {
	if e.cursor == nil {
		return nil
	}
	err := e.cursor.Close()
	e.cursor = nil
	return err
}

// IntersectingTerms collects every term yielded by a walk of dict for
// query
func IntersectingTerms(dict TermDictionary, query IntersectionQuery) ([]Term, error) {
	enum := NewIntersectionEnumerator(dict, query)
	defer enum.Close()

	var terms []Term
	for {
		_, term, ok, err := enum.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return terms, nil
		}
		terms = append(terms, term)
	}
}
