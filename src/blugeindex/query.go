package blugeindex

import (
	"fmt"

	"github.com/blugelabs/bluge"

	"kukan/src/interval"
)

// NewContainsQuery matches documents whose interval in field contains
// point: an OR over the point's ancestor terms
func NewContainsQuery(field string, point int64, step uint8) (*bluge.BooleanQuery, error) {
	terms, err := interval.AncestorsOf(point, step)
	if err != nil {
		return nil, err
	}
	return termsQuery(field, terms), nil
}

// NewIntersectsQuery matches documents whose interval in field overlaps
// [start, end]. The overlapping terms are enumerated from reader's
// dictionary up front, so the query is only valid against that reader
func NewIntersectsQuery(reader DictionaryReader, field string, start, end int64, step uint8) (bluge.Query, error) {
	query, err := interval.NewIntersectionQuery(field, start, end, step)
	if err != nil {
		return nil, err
	}

	terms, err := interval.IntersectingTerms(NewDictionary(reader), query)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate terms of %s: %w", field, err)
	}
	if len(terms) == 0 {
		return bluge.NewMatchNoneQuery(), nil
	}
	return termsQuery(field, terms), nil
}

func termsQuery(field string, terms []interval.Term) *bluge.BooleanQuery {
	query := bluge.NewBooleanQuery()
	for _, term := range terms {
		query.AddShould(bluge.NewTermQuery(string(term)).SetField(field))
	}
	return query.SetMinShould(1)
}
