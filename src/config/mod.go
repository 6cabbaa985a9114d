package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const VERSION = 1

const (
	// IDFieldName is the field bluge keeps document ids in
	IDFieldName = "_id"

	// DynamicFieldName holds the JSON of document fields missing from the schema
	DynamicFieldName = "_dynamic"
)

// ErrInvalidConfig is returned for configs that fail validation
var ErrInvalidConfig = errors.New("invalid index config")

// defaultTrue returns true as default value
func defaultTrue() bool {
	return true
}

// FieldType is the parsed, type specific part of a field config
type FieldType interface {
	IsIndexed() bool
	IsStored() bool
}

// FieldConfig represents a field configuration.
// Options that only apply to one type are ignored by the others
type FieldConfig struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Array   bool   `json:"array,omitempty" yaml:"array,omitempty"`
	Stored  *bool  `json:"stored,omitempty" yaml:"stored,omitempty"`
	Indexed *bool  `json:"indexed,omitempty" yaml:"indexed,omitempty"`

	// interval
	PrecisionStep uint8           `json:"precision_step,omitempty" yaml:"precision_step,omitempty"`
	Bounds        BoundsType      `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Formats       DateTimeFormats `json:"formats,omitempty" yaml:"formats,omitempty"`

	// text
	Tokenizer FieldTokenizerType `json:"tokenizer,omitempty" yaml:"tokenizer,omitempty"`

	// TypeImpl is populated by ConvertFieldTypes
	TypeImpl FieldType `json:"-" yaml:"-"`
}

// FieldConfigs represents a slice of field configurations
type FieldConfigs []FieldConfig

// convertType fills in defaults and builds TypeImpl
func (fc *FieldConfig) convertType() error {
	logrus.Debugf("Converting field %s with type %s", fc.Name, fc.Type)

	if fc.Stored == nil {
		stored := defaultTrue()
		fc.Stored = &stored
	}
	if fc.Indexed == nil {
		indexed := defaultTrue()
		fc.Indexed = &indexed
	}

	switch fc.Type {
	case FieldTypeInterval:
		impl, err := newIntervalFieldConfig(fc)
		if err != nil {
			return err
		}
		fc.TypeImpl = impl
	case FieldTypeText:
		impl, err := newTextFieldConfig(fc)
		if err != nil {
			return err
		}
		fc.TypeImpl = impl
	default:
		return fmt.Errorf("%w: unknown type %q of field %s", ErrInvalidConfig, fc.Type, fc.Name)
	}
	return nil
}

// Interval returns the interval options of the field
func (fc FieldConfig) Interval() (*IntervalFieldConfig, bool) {
	impl, ok := fc.TypeImpl.(*IntervalFieldConfig)
	return impl, ok
}

// Text returns the text options of the field
func (fc FieldConfig) Text() (*TextFieldConfig, bool) {
	impl, ok := fc.TypeImpl.(*TextFieldConfig)
	return impl, ok
}

// GetIndexed returns only the indexed fields
func (fields FieldConfigs) GetIndexed() []FieldConfig {
	var indexed []FieldConfig
	for _, field := range fields {
		if field.TypeImpl != nil && field.TypeImpl.IsIndexed() {
			indexed = append(indexed, field)
		}
	}
	return indexed
}

// IndexSchema represents the index schema configuration
type IndexSchema struct {
	Fields FieldConfigs `json:"fields" yaml:"fields"`

	// IDField names the document field used as document id. Ids are
	// generated per batch when unset
	IDField *string `json:"id_field,omitempty" yaml:"id_field,omitempty"`

	// StoreUnknown keeps fields missing from the schema as stored JSON
	StoreUnknown bool `json:"store_unknown,omitempty" yaml:"store_unknown,omitempty"`
}

// IndexConfig represents the main index configuration
type IndexConfig struct {
	Name    string      `json:"name" yaml:"name"`
	Path    string      `json:"path" yaml:"path"`
	Version uint32      `json:"version" yaml:"version"`
	Schema  IndexSchema `json:"schema" yaml:"schema"`
}

// FromPath loads an index configuration from a YAML or JSON file
func (ic *IndexConfig) FromPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ic.FromString(string(data))
}

// FromString loads an index configuration from YAML (JSON is accepted as
// YAML)
func (ic *IndexConfig) FromString(s string) error {
	if err := yaml.Unmarshal([]byte(s), ic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return ic.ConvertFieldTypes()
}

// FromJSON loads an index configuration as stored in the catalog
func (ic *IndexConfig) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, ic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return ic.ConvertFieldTypes()
}

// ConvertFieldTypes validates the config, fills in defaults and converts
// field type names to their FieldType implementations
func (ic *IndexConfig) ConvertFieldTypes() error {
	if ic.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if ic.Path == "" {
		return fmt.Errorf("%w: missing path of index %s", ErrInvalidConfig, ic.Name)
	}
	if ic.Version == 0 {
		ic.Version = VERSION
	}
	if ic.Version != VERSION {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalidConfig, ic.Version, VERSION)
	}

	seen := make(map[string]bool, len(ic.Schema.Fields))
	for i := range ic.Schema.Fields {
		field := &ic.Schema.Fields[i]
		switch {
		case field.Name == "":
			return fmt.Errorf("%w: field %d has no name", ErrInvalidConfig, i)
		case field.Name == IDFieldName || field.Name == DynamicFieldName:
			return fmt.Errorf("%w: field name %s is reserved", ErrInvalidConfig, field.Name)
		case seen[field.Name]:
			return fmt.Errorf("%w: duplicate field %s", ErrInvalidConfig, field.Name)
		}
		seen[field.Name] = true

		if err := field.convertType(); err != nil {
			return err
		}
	}

	if ic.Schema.IDField != nil && *ic.Schema.IDField == "" {
		return fmt.Errorf("%w: empty id_field", ErrInvalidConfig)
	}
	return nil
}

// Field returns the field named name
func (ic *IndexConfig) Field(name string) (FieldConfig, bool) {
	for _, field := range ic.Schema.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldConfig{}, false
}

// IntervalFields returns the interval fields of the schema
func (ic *IndexConfig) IntervalFields() []FieldConfig {
	var fields []FieldConfig
	for _, field := range ic.Schema.Fields {
		if _, ok := field.Interval(); ok {
			fields = append(fields, field)
		}
	}
	return fields
}

// AllStored reports whether every field keeps its value, which merging
// requires to rebuild documents
func (ic *IndexConfig) AllStored() bool {
	for _, field := range ic.Schema.Fields {
		if field.TypeImpl == nil || !field.TypeImpl.IsStored() {
			return false
		}
	}
	return true
}

// LoadIndexConfigFromPath loads an index configuration from a file path
func LoadIndexConfigFromPath(path string) (*IndexConfig, error) {
	var config IndexConfig
	if err := config.FromPath(path); err != nil {
		return nil, err
	}
	return &config, nil
}
