package unified_index

import (
	"encoding/json"
	"fmt"
)

// VERSION of the footer layout; readers reject any other value
const VERSION = 1

// IndexFooter is the JSON trailer of a unified index file. It maps every
// packed file name to the byte range holding its contents
type IndexFooter struct {
	FileOffsets map[string]Range `json:"file_offsets" yaml:"file_offsets"`
	Version     uint32           `json:"version" yaml:"version"`
}

// NewIndexFooter creates a new IndexFooter
func NewIndexFooter(fileOffsets map[string]Range) *IndexFooter {
	return &IndexFooter{
		FileOffsets: fileOffsets,
		Version:     VERSION,
	}
}

// Marshal encodes the footer as it is appended after the packed files
func (f *IndexFooter) Marshal() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize footer: %w", err)
	}
	return data, nil
}

// parseFooter decodes a footer and checks it against the bodyLen bytes of
// packed files preceding it
func parseFooter(data []byte, bodyLen uint64) (*IndexFooter, error) {
	var footer IndexFooter
	if err := json.Unmarshal(data, &footer); err != nil {
		return nil, fmt.Errorf("failed to deserialize footer: %w", err)
	}
	if footer.Version != VERSION {
		return nil, fmt.Errorf("unsupported unified index version %d (expected %d)", footer.Version, VERSION)
	}
	for name, r := range footer.FileOffsets {
		if r.Start > r.End || r.End > bodyLen {
			return nil, fmt.Errorf("file %s has range [%d, %d) outside of %d bytes", name, r.Start, r.End, bodyLen)
		}
	}
	return &footer, nil
}

// Range is the half-open byte range [Start, End) of one packed file
type Range struct {
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// Length returns the length of the range
func (r Range) Length() uint64 {
	return r.End - r.Start
}
