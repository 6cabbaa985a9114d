package blugeindex

import (
	"fmt"

	segment "github.com/blugelabs/bluge_segment_api"

	"kukan/src/interval"
)

// DictionaryReader is the part of *bluge.Reader the dictionary adapter uses
type DictionaryReader interface {
	DictionaryIterator(field string, automaton segment.Automaton, start, end []byte) (segment.DictionaryIterator, error)
}

// matchAll is an automaton accepting every key
type matchAll struct{}

func (matchAll) Start() int { return 0 }

func (matchAll) IsMatch(int) bool { return true }

func (matchAll) CanMatch(int) bool { return true }

func (matchAll) WillAlwaysMatch(int) bool { return true }

func (matchAll) Accept(int, byte) int { return 0 }

// Dictionary exposes the term dictionary of a bluge reader as an
// interval.TermDictionary. Every seek opens a new iterator starting at the
// requested term; iterators never leave the field they were opened on
type Dictionary struct {
	reader DictionaryReader
}

// NewDictionary wraps reader
func NewDictionary(reader DictionaryReader) *Dictionary {
	return &Dictionary{reader: reader}
}

// SeekTermsOrEqual implements interval.TermDictionary
func (d *Dictionary) SeekTermsOrEqual(field string, term interval.Term) (interval.TermCursor, error) {
	it, err := d.reader.DictionaryIterator(field, matchAll{}, term, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary of %s: %w", field, err)
	}

	c := &dictCursor{field: field, it: it}
	if err := c.load(); err != nil {
		_ = it.Close()
		return nil, err
	}
	return c, nil
}

type dictCursor struct {
	field   string
	it      segment.DictionaryIterator
	current interval.DictEntry
	ok      bool
}

// load reads the next dictionary entry into current
func (c *dictCursor) load() error {
	if c.it == nil {
		c.ok = false
		return nil
	}

	entry, err := c.it.Next()
	if err != nil {
		c.ok = false
		return fmt.Errorf("failed to read dictionary of %s: %w", c.field, err)
	}
	if entry == nil {
		c.ok = false
		return nil
	}

	c.current = interval.DictEntry{Field: c.field, Term: interval.Term(entry.Term())}
	c.ok = true
	return nil
}

func (c *dictCursor) Current() (interval.DictEntry, bool) {
	return c.current, c.ok
}

func (c *dictCursor) Advance() (interval.DictEntry, bool, error) {
	if err := c.load(); err != nil {
		return interval.DictEntry{}, false, err
	}
	return c.current, c.ok, nil
}

func (c *dictCursor) Close() error {
	if c.it == nil {
		return nil
	}
	err := c.it.Close()
	c.it = nil
	c.ok = false
	return err
}
