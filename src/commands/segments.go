package commands

import (
	"fmt"
	"io"

	"kukan/src/args"
	"kukan/src/interval"
)

// RunSegments prints the trie decomposition of an interval literal, one
// segment per line with the term it is indexed under
func RunSegments(segmentsArgs *args.SegmentsArgs, out io.Writer) error {
	iv, err := interval.ParseValidInterval(segmentsArgs.Literal)
	if err != nil {
		return err
	}

	segments, err := interval.Decompose(iv.Start, iv.End, segmentsArgs.PrecisionStep)
	if err != nil {
		return err
	}

	for _, seg := range segments {
		term, err := interval.Encode(seg)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", seg, err)
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\n", seg, term); err != nil {
			return err
		}
	}
	return nil
}
