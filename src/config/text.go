package config

import "fmt"

// FieldTokenizerType represents tokenizer types
type FieldTokenizerType string

const (
	FieldTokenizerTypeDefault FieldTokenizerType = "default"
	FieldTokenizerTypeRaw     FieldTokenizerType = "raw"
	FieldTokenizerTypeEnStem  FieldTokenizerType = "en_stem"
)

// TextFieldConfig represents a text field configuration
type TextFieldConfig struct {
	Stored    bool
	Indexed   bool
	Tokenizer FieldTokenizerType
}

func newTextFieldConfig(fc *FieldConfig) (*TextFieldConfig, error) {
	if fc.Tokenizer == "" {
		fc.Tokenizer = FieldTokenizerTypeDefault
	}
	switch fc.Tokenizer {
	case FieldTokenizerTypeDefault, FieldTokenizerTypeRaw, FieldTokenizerTypeEnStem:
	default:
		return nil, fmt.Errorf("%w: field %s: unknown tokenizer %q", ErrInvalidConfig, fc.Name, fc.Tokenizer)
	}

	return &TextFieldConfig{
		Stored:    *fc.Stored,
		Indexed:   *fc.Indexed,
		Tokenizer: fc.Tokenizer,
	}, nil
}

// IsIndexed implements FieldType interface
func (t TextFieldConfig) IsIndexed() bool {
	return t.Indexed
}

// IsStored implements FieldType interface
func (t TextFieldConfig) IsStored() bool {
	return t.Stored
}
