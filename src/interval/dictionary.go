package interval

// DictEntry is one term of a field as seen through a TermCursor
type DictEntry struct {
	Field string
	Term  Term
}

// TermCursor walks terms in ascending order. It may run past the field it
// was opened on; callers compare DictEntry.Field to detect that
type TermCursor interface {
	// Current returns the entry under the cursor, or false once exhausted
	Current() (DictEntry, bool)
	// Advance moves to the next entry and returns it
	Advance() (DictEntry, bool, error)
	Close() error
}

// TermDictionary is the read side of the term store the intervals were
// indexed into
type TermDictionary interface {
	// SeekTermsOrEqual positions a cursor on the first term of field that is
	// greater than or equal to term
	SeekTermsOrEqual(field string, term Term) (TermCursor, error)
}
