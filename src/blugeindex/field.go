package blugeindex

import (
	"fmt"

	"github.com/blugelabs/bluge"

	"kukan/src/interval"
)

// NewIntervalField builds an indexed field holding iv. The field value is
// the interval literal, so StoreValue keeps it readable in search results
func NewIntervalField(name string, iv interval.Interval, step uint8) (*bluge.TermField, error) {
	if err := iv.Validate(); err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	analyzer, err := NewSegmentAnalyzer(step)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}

	return bluge.NewKeywordField(name, iv.String()).WithAnalyzer(analyzer), nil
}

// ParseStoredInterval reads back the stored value of an interval field
func ParseStoredInterval(value []byte) (interval.Interval, error) {
	return interval.ParseValidInterval(string(value))
}
