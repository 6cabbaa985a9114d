package termdict

import (
	"bytes"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"kukan/src/interval"
)

// entry is one (field, term) key of the dictionary with its postings
type entry struct {
	field    string
	term     interval.Term
	postings *roaring.Bitmap
}

func (e *entry) less(field string, term interval.Term) bool {
	if e.field != field {
		return e.field < field
	}
	return bytes.Compare(e.term, term) < 0
}

// MemoryIndex is an in-memory term dictionary with roaring posting lists.
// All fields share one sorted key space ordered by (field, term)
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []*entry
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// search returns the position of the first key >= (field, term)
func (m *MemoryIndex) search(field string, term interval.Term) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return !m.entries[i].less(field, term)
	})
}

// PutPosting records doc under (field, term)
func (m *MemoryIndex) PutPosting(field string, term interval.Term, doc uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.search(field, term)
	if pos < len(m.entries) && m.entries[pos].field == field && bytes.Equal(m.entries[pos].term, term) {
		m.entries[pos].postings.Add(doc)
		return
	}

	e := &entry{
		field:    field,
		term:     append(interval.Term(nil), term...),
		postings: roaring.BitmapOf(doc),
	}
	m.entries = append(m.entries, nil)
	copy(m.entries[pos+1:], m.entries[pos:])
	m.entries[pos] = e
}

// LookupPostings returns a copy of the documents stored under (field, term).
// The bitmap is empty when the key does not exist
func (m *MemoryIndex) LookupPostings(field string, term interval.Term) *roaring.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos := m.search(field, term)
	if pos < len(m.entries) && m.entries[pos].field == field && bytes.Equal(m.entries[pos].term, term) {
		return m.entries[pos].postings.Clone()
	}
	return roaring.New()
}

// Len returns the number of distinct (field, term) keys
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SeekTermsOrEqual opens a cursor on the first key >= (field, term). The
// cursor walks a snapshot of the keys taken at seek time and runs on into
// the following fields
func (m *MemoryIndex) SeekTermsOrEqual(field string, term interval.Term) (interval.TermCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make([]*entry, len(m.entries))
	copy(snapshot, m.entries)

	return &cursor{entries: snapshot, pos: m.search(field, term)}, nil
}

type cursor struct {
	entries []*entry
	pos     int
}

func (c *cursor) Current() (interval.DictEntry, bool) {
	if c.pos >= len(c.entries) {
		return interval.DictEntry{}, false
	}
	e := c.entries[c.pos]
	return interval.DictEntry{Field: e.field, Term: e.term}, true
}

func (c *cursor) Advance() (interval.DictEntry, bool, error) {
	if c.pos < len(c.entries) {
		c.pos++
	}
	entry, ok := c.Current()
	return entry, ok, nil
}

func (c *cursor) Close() error {
	c.entries = nil
	c.pos = 0
	return nil
}
