package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/analysis/analyzer"
	"github.com/blugelabs/bluge/analysis/lang/en"

	"kukan/src/blugeindex"
	"kukan/src/commands/sources"
	"kukan/src/config"
	"kukan/src/interval"
)

// ParseFunc turns one JSON value into the bluge field holding it
type ParseFunc func(value interface{}) (bluge.Field, error)

// FieldParser parses the values of one schema field
type FieldParser struct {
	// The field name. Example: "window"
	Name string

	// Parses a single (non-array) value
	ParseFn ParseFunc

	// Whether the field is an array
	IsArray bool
}

// Parse returns the bluge fields for a JSON value of the field
func (fp *FieldParser) Parse(jsonValue interface{}) ([]bluge.Field, error) {
	if !fp.IsArray {
		field, err := fp.ParseFn(jsonValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse field %s: %w", fp.Name, err)
		}
		return []bluge.Field{field}, nil
	}

	values, ok := jsonValue.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array for field %s", fp.Name)
	}

	fields := make([]bluge.Field, 0, len(values))
	for _, value := range values {
		field, err := fp.ParseFn(value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse array element for field %s: %w", fp.Name, err)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// parseIntervalValue reads an interval from the literal "start-end", a two
// element array or a {"start", "end"} object. Array and object bounds go
// through the field's bound parser, so datetime fields accept dates there
func parseIntervalValue(fieldConfig *config.IntervalFieldConfig, value interface{}) (interval.Interval, error) {
	var start, end int64
	var err error

	switch v := value.(type) {
	case string:
		return interval.ParseValidInterval(v)

	case []interface{}:
		if len(v) != 2 {
			return interval.Interval{}, fmt.Errorf("expected [start, end], got %d elements", len(v))
		}
		if start, err = fieldConfig.ParseBound(v[0]); err != nil {
			return interval.Interval{}, fmt.Errorf("start: %w", err)
		}
		if end, err = fieldConfig.ParseBound(v[1]); err != nil {
			return interval.Interval{}, fmt.Errorf("end: %w", err)
		}

	case map[string]interface{}:
		rawStart, hasStart := v["start"]
		rawEnd, hasEnd := v["end"]
		if !hasStart || !hasEnd {
			return interval.Interval{}, fmt.Errorf("expected an object with start and end")
		}
		if start, err = fieldConfig.ParseBound(rawStart); err != nil {
			return interval.Interval{}, fmt.Errorf("start: %w", err)
		}
		if end, err = fieldConfig.ParseBound(rawEnd); err != nil {
			return interval.Interval{}, fmt.Errorf("end: %w", err)
		}

	default:
		return interval.Interval{}, fmt.Errorf("unsupported interval value of type %T", value)
	}

	iv := interval.New(start, end)
	if err := iv.Validate(); err != nil {
		return interval.Interval{}, err
	}
	return iv, nil
}

// textAnalyzer maps a tokenizer name to the bluge analyzer implementing it
func textAnalyzer(tokenizer config.FieldTokenizerType) bluge.Analyzer {
	switch tokenizer {
	case config.FieldTokenizerTypeRaw:
		return analyzer.NewKeywordAnalyzer()
	case config.FieldTokenizerTypeEnStem:
		return en.NewAnalyzer()
	default:
		return analyzer.NewStandardAnalyzer()
	}
}

// buildParserFromFieldConfig creates a FieldParser from a FieldConfig
func buildParserFromFieldConfig(fieldConfig config.FieldConfig) (*FieldParser, error) {
	name := fieldConfig.Name
	var parseFn ParseFunc

	if fieldType, ok := fieldConfig.Interval(); ok {
		parseFn = func(value interface{}) (bluge.Field, error) {
			iv, err := parseIntervalValue(fieldType, value)
			if err != nil {
				return nil, err
			}
			if !fieldType.Indexed {
				return bluge.NewStoredOnlyField(name, []byte(iv.String())), nil
			}
			field, err := blugeindex.NewIntervalField(name, iv, fieldType.PrecisionStep)
			if err != nil {
				return nil, err
			}
			if fieldType.Stored {
				field.StoreValue()
			}
			return field, nil
		}
	} else if fieldType, ok := fieldConfig.Text(); ok {
		fieldAnalyzer := textAnalyzer(fieldType.Tokenizer)
		parseFn = func(value interface{}) (bluge.Field, error) {
			text, err := textValue(value)
			if err != nil {
				return nil, err
			}
			if !fieldType.Indexed {
				return bluge.NewStoredOnlyField(name, []byte(text)), nil
			}
			field := bluge.NewTextField(name, text).WithAnalyzer(fieldAnalyzer)
			if fieldType.Stored {
				field.StoreValue()
			}
			return field, nil
		}
	} else {
		return nil, fmt.Errorf("unsupported field type for field %s", name)
	}

	return &FieldParser{
		Name:    name,
		ParseFn: parseFn,
		IsArray: fieldConfig.Array,
	}, nil
}

// textValue accepts strings and, for convenience, JSON numbers and booleans
func textValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

// BuildParsersFromFieldConfigs builds parsers for the fields that keep
// anything; fields neither indexed nor stored are dropped
func BuildParsersFromFieldConfigs(fields config.FieldConfigs) ([]*FieldParser, error) {
	var parsers []*FieldParser

	for _, field := range fields {
		if field.TypeImpl == nil {
			return nil, fmt.Errorf("field %s was not converted", field.Name)
		}
		if !field.TypeImpl.IsIndexed() && !field.TypeImpl.IsStored() {
			continue
		}
		parser, err := buildParserFromFieldConfig(field)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, parser)
	}

	return parsers, nil
}

// documentBuilder turns source documents into bluge documents
type documentBuilder struct {
	parsers      []*FieldParser
	schema       map[string]bool
	idField      *string
	storeUnknown bool
}

func newDocumentBuilder(indexConfig *config.IndexConfig) (*documentBuilder, error) {
	parsers, err := BuildParsersFromFieldConfigs(indexConfig.Schema.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build field parsers: %w", err)
	}

	schema := make(map[string]bool, len(indexConfig.Schema.Fields))
	for _, field := range indexConfig.Schema.Fields {
		schema[field.Name] = true
	}

	return &documentBuilder{
		parsers:      parsers,
		schema:       schema,
		idField:      indexConfig.Schema.IDField,
		storeUnknown: indexConfig.Schema.StoreUnknown,
	}, nil
}

// documentID returns the configured id field of item, or fallback when the
// schema has no id field
func (b *documentBuilder) documentID(item sources.JsonMap, fallback string) (string, error) {
	if b.idField == nil {
		return fallback, nil
	}

	value, exists := item[*b.idField]
	if !exists {
		return "", fmt.Errorf("missing id field %s", *b.idField)
	}
	id, err := textValue(value)
	if err != nil {
		return "", fmt.Errorf("id field %s: %w", *b.idField, err)
	}
	if id == "" {
		return "", fmt.Errorf("empty id field %s", *b.idField)
	}
	return id, nil
}

// Build parses every schema field of item. Fields missing from the schema
// are kept as stored JSON when the schema asks for it
func (b *documentBuilder) Build(id string, item sources.JsonMap) (*bluge.Document, error) {
	doc := bluge.NewDocument(id)

	for _, parser := range b.parsers {
		value, exists := item[parser.Name]
		if !exists || value == nil {
			continue
		}
		fields, err := parser.Parse(value)
		if err != nil {
			return nil, err
		}
		for _, field := range fields {
			doc.AddField(field)
		}
	}

	if !b.storeUnknown {
		return doc, nil
	}

	unknown := make(sources.JsonMap)
	for key, value := range item {
		if !b.schema[key] {
			unknown[key] = value
		}
	}
	if len(unknown) > 0 {
		data, err := json.Marshal(unknown)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize unknown fields: %w", err)
		}
		doc.AddField(bluge.NewStoredOnlyField(config.DynamicFieldName, data))
	}

	return doc, nil
}
