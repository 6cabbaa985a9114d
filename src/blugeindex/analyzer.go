package blugeindex

import (
	"github.com/blugelabs/bluge/analysis"
	"github.com/sirupsen/logrus"

	"kukan/src/interval"
)

// SegmentAnalyzer turns an interval literal ("start-end") into one token per
// trie segment of its decomposition
type SegmentAnalyzer struct {
	PrecisionStep uint8
}

// NewSegmentAnalyzer creates an analyzer for the given precision step
func NewSegmentAnalyzer(step uint8) (*SegmentAnalyzer, error) {
	if err := interval.ValidatePrecisionStep(step); err != nil {
		return nil, err
	}
	return &SegmentAnalyzer{PrecisionStep: step}, nil
}

// Analyze implements bluge.Analyzer. Input that does not parse as a valid
// interval yields no tokens; fields built with NewIntervalField never hit
// that case
func (a *SegmentAnalyzer) Analyze(input []byte) analysis.TokenStream {
	iv, err := interval.ParseValidInterval(string(input))
	if err != nil {
		logrus.Warnf("Skipping interval value %q: %v", input, err)
		return nil
	}

	terms, err := interval.DecomposeTerms(iv, a.PrecisionStep)
	if err != nil {
		logrus.Warnf("Skipping interval value %q: %v", input, err)
		return nil
	}

	tokens := make(analysis.TokenStream, 0, len(terms))
	for _, term := range terms {
		tokens = append(tokens, &analysis.Token{
			Start:        0,
			End:          len(input),
			Term:         term,
			PositionIncr: 1,
			Type:         analysis.Numeric,
		})
	}
	return tokens
}
