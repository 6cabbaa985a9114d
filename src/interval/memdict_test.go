package interval

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// sortedDict is a TermDictionary over a slice sorted on the first seek after
// an insert, with postings as doc ids per (field, term)
type sortedDict struct {
	entries  []DictEntry
	postings map[string][]int
	dirty    bool
	seeks    int
}

func newSortedDict() *sortedDict {
	return &sortedDict{postings: map[string][]int{}}
}

func postingKey(field string, term Term) string {
	return field + "\x00" + string(term)
}

func (d *sortedDict) add(t *testing.T, field string, doc int, iv Interval, step uint8) {
	t.Helper()

	terms, err := DecomposeTerms(iv, step)
	require.NoError(t, err)
	for _, term := range terms {
		key := postingKey(field, term)
		if _, ok := d.postings[key]; !ok {
			d.entries = append(d.entries, DictEntry{Field: field, Term: term})
		}
		d.postings[key] = append(d.postings[key], doc)
	}
	d.dirty = true
}

func (d *sortedDict) addRaw(field string, term Term) {
	d.entries = append(d.entries, DictEntry{Field: field, Term: term})
	d.dirty = true
}

func (d *sortedDict) sort() {
	if !d.dirty {
		return
	}
	sort.Slice(d.entries, func(i, j int) bool {
		return entryLess(d.entries[i], d.entries[j].Field, d.entries[j].Term)
	})
	d.dirty = false
}

func entryLess(e DictEntry, field string, term Term) bool {
	if e.Field != field {
		return e.Field < field
	}
	return bytes.Compare(e.Term, term) < 0
}

func (d *sortedDict) SeekTermsOrEqual(field string, term Term) (TermCursor, error) {
	d.seeks++
	d.sort()
	pos := sort.Search(len(d.entries), func(i int) bool {
		return !entryLess(d.entries[i], field, term)
	})
	return &sortedCursor{entries: d.entries, pos: pos}, nil
}

// docs walks query and returns the distinct documents behind the yielded
// terms
func (d *sortedDict) docs(t *testing.T, query IntersectionQuery) []int {
	t.Helper()

	terms, err := IntersectingTerms(d, query)
	require.NoError(t, err)

	seen := map[int]bool{}
	var out []int
	for _, term := range terms {
		for _, doc := range d.postings[postingKey(query.Field, term)] {
			if !seen[doc] {
				seen[doc] = true
				out = append(out, doc)
			}
		}
	}
	sort.Ints(out)
	return out
}

type sortedCursor struct {
	entries []DictEntry
	pos     int
	closed  bool
}

func (c *sortedCursor) Current() (DictEntry, bool) {
	if c.closed || c.pos >= len(c.entries) {
		return DictEntry{}, false
	}
	return c.entries[c.pos], true
}

func (c *sortedCursor) Advance() (DictEntry, bool, error) {
	c.pos++
	entry, ok := c.Current()
	return entry, ok, nil
}

func (c *sortedCursor) Close() error {
	c.closed = true
	return nil
}
