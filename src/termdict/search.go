package termdict

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"kukan/src/interval"
)

// IndexInterval decomposes iv and posts doc under every segment term
func (m *MemoryIndex) IndexInterval(field string, doc uint32, iv interval.Interval, step uint8) error {
	terms, err := interval.DecomposeTerms(iv, step)
	if err != nil {
		return fmt.Errorf("failed to decompose %s: %w", iv, err)
	}
	for _, term := range terms {
		m.PutPosting(field, term, doc)
	}
	return nil
}

// Contains returns the documents whose interval in field contains point.
// It is the OR of the postings of point's ancestor terms
func (m *MemoryIndex) Contains(field string, point int64, step uint8) (*roaring.Bitmap, error) {
	terms, err := interval.AncestorsOf(point, step)
	if err != nil {
		return nil, err
	}

	postings := make([]*roaring.Bitmap, 0, len(terms))
	for _, term := range terms {
		postings = append(postings, m.LookupPostings(field, term))
	}
	return roaring.FastOr(postings...), nil
}

// Intersects returns the documents whose interval in field overlaps
// [start, end]
func (m *MemoryIndex) Intersects(field string, start, end int64, step uint8) (*roaring.Bitmap, error) {
	query, err := interval.NewIntersectionQuery(field, start, end, step)
	if err != nil {
		return nil, err
	}

	terms, err := interval.IntersectingTerms(m, query)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate terms of %q: %w", field, err)
	}

	result := roaring.New()
	for _, term := range terms {
		result.Or(m.LookupPostings(field, term))
	}
	return result, nil
}
